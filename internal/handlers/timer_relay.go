// internal/handlers/timer_relay.go
package handlers

import (
	"sync"
	"time"

	"github.com/TiennDungg1606/rubik-socket-server/internal/room"
)

// EventTimerUpdate mirrors stopwatch state to spectators; the same event name
// carries the start announcement, periodic ticks and the final stop.
const EventTimerUpdate = "timer-update"

type timerUpdatePayload struct {
	UserID  string `json:"userId"`
	Time    int64  `json:"time"` // milliseconds since start
	Running bool   `json:"running"`
}

type timerKey struct {
	roomID string
	userID string
}

type timerRun struct {
	startedAt time.Time
	stop      chan struct{}
}

// TimerRelay mirrors one player's running stopwatch to the rest of the room.
// Clients animate locally from the start signal; the relayed ticks only keep
// spectators loosely in sync, so a dropped tick is harmless.
type TimerRelay struct {
	mu      sync.Mutex
	running map[timerKey]*timerRun
	bc      room.Broadcaster

	// Interval is the tick period; MaxRun bounds a stopwatch whose stop
	// message never arrives.
	Interval time.Duration
	MaxRun   time.Duration
}

func NewTimerRelay(bc room.Broadcaster) *TimerRelay {
	return &TimerRelay{
		running:  make(map[timerKey]*timerRun),
		bc:       bc,
		Interval: 100 * time.Millisecond,
		MaxRun:   10 * time.Minute,
	}
}

// Start announces the stopwatch to the room and begins relaying ticks to
// everyone but the solver. Clients report their running state on every local
// tick, so a start while already running keeps the original clock.
func (tr *TimerRelay) Start(roomID, userID string) {
	code := room.NormalizeCode(roomID)
	key := timerKey{roomID: code, userID: userID}

	tr.mu.Lock()
	if _, ok := tr.running[key]; ok {
		tr.mu.Unlock()
		return
	}
	run := &timerRun{startedAt: time.Now(), stop: make(chan struct{})}
	tr.running[key] = run
	tr.mu.Unlock()

	tr.bc.EmitToRoomExcept(code, userID, EventTimerUpdate, timerUpdatePayload{UserID: userID, Running: true})

	go func() {
		ticker := time.NewTicker(tr.Interval)
		defer ticker.Stop()
		deadline := time.NewTimer(tr.MaxRun)
		defer deadline.Stop()

		for {
			select {
			case <-run.stop:
				return
			case <-deadline.C:
				tr.Stop(code, userID)
				return
			case <-ticker.C:
				tr.bc.EmitToRoomExcept(code, userID, EventTimerUpdate, timerUpdatePayload{
					UserID:  userID,
					Time:    time.Since(run.startedAt).Milliseconds(),
					Running: true,
				})
			}
		}
	}()
}

// Stop ends the solver's relayed stopwatch and returns the elapsed
// milliseconds, or zero when no stopwatch was running.
func (tr *TimerRelay) Stop(roomID, userID string) int64 {
	code := room.NormalizeCode(roomID)
	key := timerKey{roomID: code, userID: userID}

	tr.mu.Lock()
	run, ok := tr.running[key]
	if ok {
		delete(tr.running, key)
		close(run.stop)
	}
	tr.mu.Unlock()

	if !ok {
		return 0
	}
	elapsed := time.Since(run.startedAt).Milliseconds()
	tr.bc.EmitToRoomExcept(code, userID, EventTimerUpdate, timerUpdatePayload{UserID: userID, Time: elapsed})
	return elapsed
}
