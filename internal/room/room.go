// internal/room/room.go
package room

import (
	"errors"
	"strings"
	"time"
)

// Mode selects the game variant a room runs. Capacity, round size and the
// turn-advance rule all derive from it; there is one state machine for both.
type Mode string

const (
	ModeOneVsOne Mode = "1vs1"
	ModeTwoVsTwo Mode = "2vs2"
)

// Capacity is the hard participant limit for the mode. A join beyond it is
// rejected, never queued.
func (m Mode) Capacity() int {
	if m == ModeTwoVsTwo {
		return 4
	}
	return 2
}

// BatchSize is the number of scrambles generated per batch; scramble i is
// revealed after i full rounds of solving.
const BatchSize = 5

// Rejection reasons surfaced to the requesting client only. None of these
// mutate room state.
var (
	ErrInvalidInput  = errors.New("empty userId or userName")
	ErrWrongPassword = errors.New("wrong room password")
	ErrRoomFull      = errors.New("room is full")
	ErrRoomNotFound  = errors.New("room not found")

	ErrPreconditionFailed = errors.New("operation not valid in current state")
)

// Participant is one occupant of a room. Team, Position and Role are only set
// on rooms promoted from a 2v2 waiting room; direct-join rooms leave them
// zero.
type Participant struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Avatar   string `json:"avatar,omitempty"`
	Team     string `json:"team,omitempty"`     // "team1" or "team2"
	Position int    `json:"position,omitempty"` // seat index within the team, 1-based
	Role     string `json:"role,omitempty"`     // "creator", "player" or "observer"
}

// IsObserver reports whether the participant is excluded from capacity, turn
// and ready calculations.
func (p Participant) IsObserver() bool { return p.Role == "observer" }

// Meta is the room metadata set at creation and surfaced in the public room
// listing.
type Meta struct {
	GameMode    Mode   `json:"gameMode"`
	Event       string `json:"event"`
	DisplayName string `json:"displayName"`
	Password    string `json:"-"`
}

// Room is the authoritative state of one active match. All fields are guarded
// by the owning Registry's mutex.
type Room struct {
	Code         string
	Participants []Participant
	HostID       string
	TurnUserID   string
	Meta         Meta

	turnOrder  []string
	turnIndex  int
	scrambles  []string
	solveCount int

	// gated marks rooms created via direct join, whose password is enforced
	// on every join. Rooms promoted from a waiting room already applied the
	// gate there and are never re-checked.
	gated bool

	// insufficientDeadline is the force-close deadline while a 2v2 room is
	// below full strength; zero when no countdown is armed. The deadline is
	// broadcast only once the room has reached full strength at least once
	// (everFull); a room still filling up is evicted silently instead of
	// showing its first occupants a force-close countdown.
	insufficientDeadline  time.Time
	insufficientAnnounced bool
	everFull              bool

	rematch *rematchState
}

// NormalizeCode uppercases a room code for lookup; room codes are
// case-insensitive on the wire.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Room) participant(userID string) (int, bool) {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return i, true
		}
	}
	return -1, false
}

// activeCount is the number of non-observer occupants, the figure capacity
// and the under-staffed countdown are measured against.
func (r *Room) activeCount() int {
	n := 0
	for _, p := range r.Participants {
		if !p.IsObserver() {
			n++
		}
	}
	return n
}

// roundSize is the number of solves making up one full round: 2 in 1v1, the
// turn-order length (normally 4) in 2v2.
func (r *Room) roundSize() int {
	if r.Meta.GameMode == ModeTwoVsTwo && len(r.turnOrder) > 0 {
		return len(r.turnOrder)
	}
	return 2
}

// currentScrambleIndex is the batch index in play after solveCount solves.
func (r *Room) currentScrambleIndex() int {
	rs := r.roundSize()
	if rs <= 0 {
		return 0
	}
	idx := r.solveCount / rs
	if idx >= len(r.scrambles) {
		idx = len(r.scrambles) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
