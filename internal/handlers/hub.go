// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Socket is one connected client. UserID and the room/lobby bindings are set
// by the join handlers and read during cleanup; guard them with mu since the
// read pump and broadcast paths touch them concurrently.
type Socket struct {
	ID      string
	OutChan chan []byte
	Cancel  context.CancelFunc

	mu       sync.Mutex
	userID   string
	userName string
	roomID   string
	lobbyID  string
}

func (s *Socket) setIdentity(userID, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.userName = userName
}

func (s *Socket) identity() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userName
}

func (s *Socket) setRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
}

func (s *Socket) setLobby(lobbyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbyID = lobbyID
}

func (s *Socket) bindings() (roomID, lobbyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.lobbyID
}

// Hub fans messages out to connected sockets. Sockets subscribe to named
// channels (an active room code, or a waiting-room channel); sends never
// block, a socket whose buffer is full simply misses the frame and resyncs
// from the next snapshot broadcast.
type Hub struct {
	mu       sync.RWMutex
	sockets  map[string]*Socket
	channels map[string]map[string]*Socket
	log      *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		sockets:  make(map[string]*Socket),
		channels: make(map[string]map[string]*Socket),
		log:      log,
	}
}

func (h *Hub) Register(s *Socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sockets[s.ID] = s
}

// Unregister drops the socket from the hub and every channel it joined.
func (h *Hub) Unregister(s *Socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sockets, s.ID)
	for name, members := range h.channels {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}
}

func (h *Hub) Subscribe(s *Socket, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[string]*Socket)
		h.channels[channel] = members
	}
	members[s.ID] = s
}

func (h *Hub) Unsubscribe(s *Socket, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.channels[channel]; ok {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
}

// EmitToRoom sends one event to every socket subscribed to the channel.
func (h *Hub) EmitToRoom(roomID, event string, payload interface{}) {
	h.emit(roomID, "", event, payload)
}

// EmitToRoomExcept sends to everyone in the channel except sockets bound to
// the given user. A user reconnecting may briefly hold two sockets; both are
// excluded.
func (h *Hub) EmitToRoomExcept(roomID, exceptUserID, event string, payload interface{}) {
	h.emit(roomID, exceptUserID, event, payload)
}

// EmitGlobal sends to every connected socket, subscribed or not. Used for
// room-browser refreshes.
func (h *Hub) EmitGlobal(event string, payload interface{}) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Warnf("hub: marshal %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sockets {
		h.push(s, frame, event)
	}
}

// Send delivers one event to a single socket.
func (h *Hub) Send(s *Socket, event string, payload interface{}) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Warnf("hub: marshal %s: %v", event, err)
		return
	}
	h.push(s, frame, event)
}

func (h *Hub) emit(channel, exceptUserID, event string, payload interface{}) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Warnf("hub: marshal %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.channels[channel] {
		if exceptUserID != "" {
			if uid, _ := s.identity(); uid == exceptUserID {
				continue
			}
		}
		h.push(s, frame, event)
	}
}

func (h *Hub) push(s *Socket, frame []byte, event string) {
	select {
	case s.OutChan <- frame:
	default:
		h.log.Warnf("hub: socket %s buffer full, dropping %s", s.ID, event)
	}
}

func marshalEnvelope(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outEnvelope{Event: event, Data: payload})
}
