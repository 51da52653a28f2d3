// internal/room/lifecycle.go
package room

import (
	"sync"
	"time"
)

// Timer kinds managed by the Supervisor. Each (kind, room) pair holds at most
// one live timer; re-arming replaces the previous one.
const (
	TimerSingleOccupant = "single-occupant"
	TimerInsufficient   = "insufficient-players"
	TimerLobbyIdle      = "lobby-idle"
	TimerLobbyTeardown  = "lobby-teardown"
)

type timerKey struct {
	kind   string
	roomID string
}

// Supervisor owns every deferred per-room cleanup task. Arming and disarming
// a timer kind goes through exactly one code path, and a fired callback only
// runs if its timer is still the current one for the key, so a cancel racing
// a fire degrades to a no-op. Callbacks must re-validate their triggering
// condition against live state; the timer captures only the room id.
type Supervisor struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
}

// NewSupervisor returns an empty Supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{timers: make(map[timerKey]*time.Timer)}
}

// Arm schedules fire after d for the (kind, roomID) pair, replacing any timer
// already armed for the pair.
func (s *Supervisor) Arm(kind, roomID string, d time.Duration, fire func()) {
	key := timerKey{kind, roomID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[key]; ok {
		old.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		current := s.timers[key] == t
		if current {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		if current {
			fire()
		}
	})
	s.timers[key] = t
}

// Disarm cancels the timer for the pair if one is armed.
func (s *Supervisor) Disarm(kind, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := timerKey{kind, roomID}
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// DisarmAll cancels every timer kind armed for the room. Part of the room
// teardown routine.
func (s *Supervisor) DisarmAll(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		if key.roomID == roomID {
			t.Stop()
			delete(s.timers, key)
		}
	}
}

// Armed reports whether a timer is currently scheduled for the pair.
func (s *Supervisor) Armed(kind, roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[timerKey{kind, roomID}]
	return ok
}
