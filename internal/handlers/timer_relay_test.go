// internal/handlers/timer_relay_test.go
package handlers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayCall struct {
	event   string
	except  string
	payload interface{}
}

type relayRecorder struct {
	mu    sync.Mutex
	calls []relayCall
}

func (r *relayRecorder) EmitToRoom(roomID, event string, payload interface{}) {
	r.EmitToRoomExcept(roomID, "", event, payload)
}

func (r *relayRecorder) EmitToRoomExcept(roomID, exceptUserID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, relayCall{event: event, except: exceptUserID, payload: payload})
}

func (r *relayRecorder) EmitGlobal(event string, payload interface{}) {}

func (r *relayRecorder) updates() []timerUpdatePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []timerUpdatePayload
	for _, c := range r.calls {
		if c.event == EventTimerUpdate {
			out = append(out, c.payload.(timerUpdatePayload))
		}
	}
	return out
}

func TestTimerRelayTicks(t *testing.T) {
	rec := &relayRecorder{}
	tr := NewTimerRelay(rec)
	tr.Interval = 10 * time.Millisecond

	tr.Start("abc", "u1")
	first := rec.updates()
	require.Len(t, first, 1, "start is announced immediately")
	assert.True(t, first[0].Running)
	assert.Zero(t, first[0].Time)

	require.Eventually(t, func() bool {
		return len(rec.updates()) >= 4
	}, time.Second, 5*time.Millisecond)

	elapsed := tr.Stop("abc", "u1")
	assert.Greater(t, elapsed, int64(0))

	all := rec.updates()
	final := all[len(all)-1]
	assert.False(t, final.Running, "stop emits one final non-running update")
	assert.Equal(t, elapsed, final.Time)

	// Idle after stop; at most one in-flight tick may still land.
	n := len(rec.updates())
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, len(rec.updates()), n+1)

	rec.mu.Lock()
	for _, c := range rec.calls {
		assert.Equal(t, "u1", c.except, "the solver never receives their own relay")
	}
	rec.mu.Unlock()
}

func TestTimerRelayStopWithoutStart(t *testing.T) {
	rec := &relayRecorder{}
	tr := NewTimerRelay(rec)
	assert.Zero(t, tr.Stop("abc", "u1"))
	assert.Empty(t, rec.updates())
}

func TestTimerRelayStartIsIdempotentWhileRunning(t *testing.T) {
	rec := &relayRecorder{}
	tr := NewTimerRelay(rec)
	tr.Interval = time.Hour // no ticks, only start/stop frames

	tr.Start("abc", "u1")
	time.Sleep(20 * time.Millisecond)
	tr.Start("abc", "u1")

	require.Len(t, rec.updates(), 1, "repeated running updates keep the original clock")
	elapsed := tr.Stop("abc", "u1")
	assert.GreaterOrEqual(t, elapsed, int64(20))
}
