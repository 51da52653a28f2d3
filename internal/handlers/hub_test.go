// internal/handlers/hub_test.go
package handlers

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareHub() *Hub {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewHub(logger)
}

func TestHubChannelFanout(t *testing.T) {
	h := newBareHub()
	a := &Socket{ID: "a", OutChan: make(chan []byte, 4)}
	b := &Socket{ID: "b", OutChan: make(chan []byte, 4)}
	c := &Socket{ID: "c", OutChan: make(chan []byte, 4)}
	for _, s := range []*Socket{a, b, c} {
		h.Register(s)
	}
	h.Subscribe(a, "ROOM")
	h.Subscribe(b, "ROOM")

	h.EmitToRoom("ROOM", "ping", map[string]int{"n": 1})

	for _, s := range []*Socket{a, b} {
		select {
		case raw := <-s.OutChan:
			var f outFrame
			require.NoError(t, json.Unmarshal(raw, &f))
			assert.Equal(t, "ping", f.Event)
		default:
			t.Fatalf("socket %s missed the broadcast", s.ID)
		}
	}
	select {
	case <-c.OutChan:
		t.Fatal("unsubscribed socket received channel traffic")
	default:
	}
}

func TestHubExceptSkipsAllUserSockets(t *testing.T) {
	h := newBareHub()
	a1 := &Socket{ID: "a1", OutChan: make(chan []byte, 4)}
	a2 := &Socket{ID: "a2", OutChan: make(chan []byte, 4)}
	b := &Socket{ID: "b", OutChan: make(chan []byte, 4)}
	a1.setIdentity("alice", "Alice")
	a2.setIdentity("alice", "Alice")
	b.setIdentity("bob", "Bob")
	for _, s := range []*Socket{a1, a2, b} {
		h.Register(s)
		h.Subscribe(s, "ROOM")
	}

	h.EmitToRoomExcept("ROOM", "alice", "ping", nil)

	for _, s := range []*Socket{a1, a2} {
		select {
		case <-s.OutChan:
			t.Fatalf("excluded user's socket %s got the frame", s.ID)
		default:
		}
	}
	select {
	case <-b.OutChan:
	default:
		t.Fatal("other user should receive the frame")
	}
}

func TestHubGlobalReachesEveryone(t *testing.T) {
	h := newBareHub()
	a := &Socket{ID: "a", OutChan: make(chan []byte, 4)}
	b := &Socket{ID: "b", OutChan: make(chan []byte, 4)}
	h.Register(a)
	h.Register(b)
	h.Subscribe(a, "ROOM")

	h.EmitGlobal("update-active-rooms", nil)

	for _, s := range []*Socket{a, b} {
		select {
		case <-s.OutChan:
		default:
			t.Fatalf("socket %s missed the global broadcast", s.ID)
		}
	}
}

func TestHubFullBufferDropsFrame(t *testing.T) {
	h := newBareHub()
	s := &Socket{ID: "s", OutChan: make(chan []byte, 1)}
	h.Register(s)
	h.Subscribe(s, "ROOM")

	h.EmitToRoom("ROOM", "one", nil)
	h.EmitToRoom("ROOM", "two", nil) // dropped, never blocks

	var f outFrame
	require.NoError(t, json.Unmarshal(<-s.OutChan, &f))
	assert.Equal(t, "one", f.Event)
	select {
	case <-s.OutChan:
		t.Fatal("second frame should have been dropped")
	default:
	}
}

func TestHubUnregisterLeavesAllChannels(t *testing.T) {
	h := newBareHub()
	s := &Socket{ID: "s", OutChan: make(chan []byte, 4)}
	h.Register(s)
	h.Subscribe(s, "ROOM")
	h.Subscribe(s, "waiting-ROOM")

	h.Unregister(s)

	h.EmitToRoom("ROOM", "ping", nil)
	h.EmitToRoom("waiting-ROOM", "ping", nil)
	h.EmitGlobal("ping", nil)
	select {
	case <-s.OutChan:
		t.Fatal("unregistered socket must not receive anything")
	default:
	}
}
