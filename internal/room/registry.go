// internal/room/registry.go
package room

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Registry owns the authoritative map of active rooms. Every mutation runs to
// completion under one mutex and broadcasts only after the state change has
// committed, so concurrent join/leave/solve/timer events always converge on a
// single consistent view.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	scrambler ScrambleProvider
	bc        Broadcaster
	log       *logrus.Logger
	sup       *Supervisor

	// Eviction windows, shortened by tests.
	SingleOccupantTimeout time.Duration
	InsufficientTimeout   time.Duration
}

// NewRegistry returns an empty registry publishing through bc.
func NewRegistry(scrambler ScrambleProvider, bc Broadcaster, log *logrus.Logger) *Registry {
	return &Registry{
		rooms:                 make(map[string]*Room),
		scrambler:             scrambler,
		bc:                    bc,
		log:                   log,
		sup:                   NewSupervisor(),
		SingleOccupantTimeout: 5 * time.Minute,
		InsufficientTimeout:   5 * time.Minute,
	}
}

// Supervisor exposes the timer owner so the waiting-room manager shares the
// same scheduled-task abstraction.
func (reg *Registry) Supervisor() *Supervisor { return reg.sup }

// JoinParams carries one join-room request.
type JoinParams struct {
	RoomID      string
	UserID      string
	UserName    string
	Avatar      string
	GameMode    Mode
	Event       string
	DisplayName string
	Password    string
}

// Join admits a user into a room, creating the room on first join. Rejections
// (ErrInvalidInput, ErrWrongPassword, ErrRoomFull) leave all state untouched.
func (reg *Registry) Join(p JoinParams) error {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.UserName) == "" {
		return ErrInvalidInput
	}
	code := NormalizeCode(p.RoomID)
	if code == "" {
		return ErrInvalidInput
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[code]
	isNew := false
	if !exists {
		mode := p.GameMode
		if mode != ModeTwoVsTwo {
			mode = ModeOneVsOne
		}
		event := p.Event
		if event == "" {
			event = "3x3"
		}
		display := p.DisplayName
		if display == "" {
			display = code
		}
		r = &Room{
			Code:   code,
			Meta:   Meta{GameMode: mode, Event: event, DisplayName: display, Password: p.Password},
			HostID: p.UserID,
			gated:  true,
		}
		r.scrambles = reg.scrambler.GenerateBatch(event, BatchSize)
		reg.rooms[code] = r
		isNew = true
	} else {
		if r.gated && r.Meta.Password != "" && p.Password != r.Meta.Password {
			return ErrWrongPassword
		}
		if _, member := r.participant(p.UserID); !member && r.activeCount() >= r.Meta.GameMode.Capacity() {
			return ErrRoomFull
		}
	}

	joinedNew := false
	if i, member := r.participant(p.UserID); member {
		// Re-join refreshes display fields in place; never duplicates.
		r.Participants[i].UserName = p.UserName
		if p.Avatar != "" {
			r.Participants[i].Avatar = p.Avatar
		}
	} else {
		r.Participants = append(r.Participants, Participant{UserID: p.UserID, UserName: p.UserName, Avatar: p.Avatar})
		joinedNew = true
	}

	r.resyncTurn(r.TurnUserID)
	reg.broadcastRoster(r)
	reg.broadcastTurn(r)
	if isNew {
		reg.bc.EmitGlobal(EventUpdateActiveRooms, nil)
	}

	reg.log.WithFields(logrus.Fields{
		"room": code,
		"user": p.UserID,
		"mode": r.Meta.GameMode,
	}).Info("user joined room")

	didReset := false
	active := r.activeCount()
	switch {
	case len(r.Participants) == 1:
		r.setTurn(r.HostID)
		reg.broadcastTurn(r)
		reg.emitScramble(r, 0)
		if r.Meta.GameMode == ModeOneVsOne {
			reg.armSingleOccupant(code)
		} else {
			reg.armInsufficient(r, false)
		}
	case joinedNew && active == r.Meta.GameMode.Capacity():
		// The roster just reached full strength: restart the round.
		r.everFull = true
		reg.sup.Disarm(TimerSingleOccupant, code)
		reg.cancelInsufficient(r)
		reg.resetRound(r)
		didReset = true
	default:
		reg.sup.Disarm(TimerSingleOccupant, code)
		if r.Meta.GameMode == ModeTwoVsTwo && active < r.Meta.GameMode.Capacity() {
			reg.armInsufficient(r, false)
		}
	}

	if !isNew && !didReset && len(r.Participants) > 1 {
		// Late or re-joining sockets need the scramble currently in play.
		reg.emitScramble(r, r.currentScrambleIndex())
	}
	return nil
}

// Leave removes a participant after an explicit leave-room message.
func (reg *Registry) Leave(roomID, userID string) {
	reg.remove(roomID, userID, "leave")
}

// Disconnect removes a participant after a transport-level disconnect. It is
// idempotent with an immediately prior Leave for the same user: the second
// removal finds no participant and does nothing, so no timer is double-armed.
func (reg *Registry) Disconnect(roomID, userID string) {
	reg.remove(roomID, userID, "disconnect")
}

func (reg *Registry) remove(roomID, userID, cause string) {
	code := NormalizeCode(roomID)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[code]
	if !exists {
		return
	}
	i, member := r.participant(userID)
	if !member {
		return
	}
	r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)

	if r.HostID == userID {
		if len(r.Participants) > 0 {
			r.HostID = r.Participants[0].UserID
		} else {
			r.HostID = ""
		}
	}
	preferred := r.TurnUserID
	if preferred == userID {
		preferred = ""
	}
	r.resyncTurn(preferred)
	r.clearRematchVote(userID)

	reg.broadcastRoster(r)
	reg.broadcastTurn(r)

	reg.log.WithFields(logrus.Fields{
		"room":  code,
		"user":  userID,
		"cause": cause,
	}).Info("user left room")

	switch {
	case len(r.Participants) == 0:
		reg.deleteRoomLocked(code)
	case r.Meta.GameMode == ModeOneVsOne && len(r.Participants) == 1:
		reg.resetRound(r)
		reg.armSingleOccupant(code)
	case r.Meta.GameMode == ModeTwoVsTwo && r.activeCount() < r.Meta.GameMode.Capacity():
		// An actual removal resets the countdown deadline.
		reg.armInsufficient(r, true)
	default:
		reg.sup.Disarm(TimerSingleOccupant, code)
	}
}

// RecordSolve books one solve result: bumps the solve counter, reveals the
// next scramble on full-round boundaries, relays the result to the rest of
// the room and advances the turn. It deliberately does not verify the solver
// holds the turn; clients gate the solve control (see DESIGN.md).
func (reg *Registry) RecordSolve(roomID, userID, userName string, timeMs int64) (string, error) {
	code := NormalizeCode(roomID)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[code]
	if !exists {
		return "", ErrRoomNotFound
	}

	r.solveCount++
	rs := r.roundSize()
	if rs > 0 && r.solveCount%rs == 0 {
		if idx := r.solveCount / rs; idx < len(r.scrambles) {
			reg.emitScramble(r, idx)
		}
		// Batch exhausted otherwise; the round keeps playing on the last
		// revealed scramble until a rematch regenerates.
	}

	reg.bc.EmitToRoomExcept(code, userID, EventOpponentSolve, SolvePayload{UserID: userID, UserName: userName, Time: timeMs})

	next := r.TurnUserID
	if r.activeCount() >= 2 {
		next = r.advanceTurn(userID)
		reg.broadcastTurn(r)
	}
	return next, nil
}

// CreateFromLobby installs a room promoted from a 2v2 waiting room. Seats and
// roles carry over, the lobby creator becomes host and the turn order is
// derived from the team/position snapshot. Promoted rooms are not re-gated.
func (reg *Registry) CreateFromLobby(roomID string, players []Participant, creatorID string, meta Meta) {
	code := NormalizeCode(roomID)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r := &Room{
		Code:         code,
		Participants: players,
		HostID:       creatorID,
		Meta:         meta,
	}
	r.scrambles = reg.scrambler.GenerateBatch(meta.Event, BatchSize)
	r.everFull = r.activeCount() >= meta.GameMode.Capacity()
	r.resyncTurn("")
	r.setTurn(r.turnFallback(creatorID))
	reg.rooms[code] = r

	reg.bc.EmitGlobal(EventUpdateActiveRooms, nil)
	reg.log.WithFields(logrus.Fields{"room": code, "players": len(players)}).Info("room promoted from waiting room")
}

// turnFallback prefers the first slot of the computed order and falls back to
// the host for degenerate seatings.
func (r *Room) turnFallback(hostID string) string {
	if len(r.turnOrder) > 0 {
		return r.turnOrder[0]
	}
	return hostID
}

// DeleteRoom tears a room down completely. Safe to call for absent rooms.
func (reg *Registry) DeleteRoom(roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.deleteRoomLocked(NormalizeCode(roomID))
}

// deleteRoomLocked is the single teardown routine: it clears every map entry
// and pending timer for the room, then announces the empty roster. A second
// call for the same id is a no-op.
func (reg *Registry) deleteRoomLocked(code string) {
	if _, exists := reg.rooms[code]; !exists {
		return
	}
	delete(reg.rooms, code)
	reg.sup.DisarmAll(code)

	reg.bc.EmitToRoom(code, EventRoomUsers, RoomUsersPayload{Users: []Participant{}, HostID: nil})
	reg.bc.EmitToRoom(code, EventRoomTurn, RoomTurnPayload{})
	reg.bc.EmitGlobal(EventUpdateActiveRooms, nil)

	reg.log.WithField("room", code).Info("room deleted")
}

// --- timers ---

func (reg *Registry) armSingleOccupant(code string) {
	reg.sup.Arm(TimerSingleOccupant, code, reg.SingleOccupantTimeout, func() {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		r, exists := reg.rooms[code]
		if !exists || len(r.Participants) != 1 {
			// Condition resolved between scheduling and firing.
			return
		}
		reg.log.WithField("room", code).Info("single occupant timeout, deleting room")
		reg.deleteRoomLocked(code)
	})
}

// armInsufficient starts (or, on a removal, restarts) the under-staffed
// countdown for a 2v2 room. Re-evaluations that are not removals never move
// an already-armed deadline. The countdown is only announced once the room
// has been at full strength; a room still filling up is evicted silently.
func (reg *Registry) armInsufficient(r *Room, causedByRemoval bool) {
	if reg.sup.Armed(TimerInsufficient, r.Code) && !causedByRemoval {
		return
	}
	code := r.Code
	deadline := time.Now().Add(reg.InsufficientTimeout)
	r.insufficientDeadline = deadline

	reg.sup.Arm(TimerInsufficient, code, reg.InsufficientTimeout, func() {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		rm, exists := reg.rooms[code]
		if !exists || rm.activeCount() >= rm.Meta.GameMode.Capacity() {
			return
		}
		reg.log.WithField("room", code).Info("insufficient players deadline elapsed, closing room")
		reg.bc.EmitToRoom(code, EventRoomForceClosed, nil)
		reg.deleteRoomLocked(code)
	})
	if r.everFull {
		r.insufficientAnnounced = true
		reg.bc.EmitToRoom(code, EventInsufficientPlayers, InsufficientPayload{Deadline: deadline.UnixMilli()})
	}
}

func (reg *Registry) cancelInsufficient(r *Room) {
	if !reg.sup.Armed(TimerInsufficient, r.Code) {
		return
	}
	reg.sup.Disarm(TimerInsufficient, r.Code)
	r.insufficientDeadline = time.Time{}
	if r.insufficientAnnounced {
		r.insufficientAnnounced = false
		reg.bc.EmitToRoom(r.Code, EventPlayersRestored, nil)
	}
}

// --- round + broadcast helpers (registry lock held) ---

// resetRound zeroes the solve counter, regenerates the scramble batch and
// hands the turn back to the host.
func (reg *Registry) resetRound(r *Room) {
	r.solveCount = 0
	r.scrambles = reg.scrambler.GenerateBatch(r.Meta.Event, BatchSize)
	reg.bc.EmitToRoom(r.Code, EventRoomReset, nil)
	reg.emitScramble(r, 0)
	r.setTurn(r.HostID)
	reg.broadcastTurn(r)
}

func (reg *Registry) broadcastRoster(r *Room) {
	users := make([]Participant, len(r.Participants))
	copy(users, r.Participants)
	reg.bc.EmitToRoom(r.Code, EventRoomUsers, RoomUsersPayload{Users: users, HostID: strptr(r.HostID)})
}

func (reg *Registry) broadcastTurn(r *Room) {
	reg.bc.EmitToRoom(r.Code, EventRoomTurn, RoomTurnPayload{TurnUserID: strptr(r.TurnUserID)})
}

func (reg *Registry) emitScramble(r *Room, idx int) {
	if idx < 0 || idx >= len(r.scrambles) {
		return
	}
	reg.bc.EmitToRoom(r.Code, EventScramble, ScramblePayload{Scramble: r.scrambles[idx], Index: idx})
}

// --- read-side accessors ---

// RoomUsers returns the current roster, or nil when the room does not exist.
func (reg *Registry) RoomUsers(roomID string) []Participant {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, exists := reg.rooms[NormalizeCode(roomID)]
	if !exists {
		return nil
	}
	users := make([]Participant, len(r.Participants))
	copy(users, r.Participants)
	return users
}

// MetaFor returns a room's metadata.
func (reg *Registry) MetaFor(roomID string) (Meta, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, exists := reg.rooms[NormalizeCode(roomID)]
	if !exists {
		return Meta{}, false
	}
	return r.Meta, true
}

// CurrentTurn returns the turn holder's user id, or empty when the room does
// not exist or has no valid holder.
func (reg *Registry) CurrentTurn(roomID string) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, exists := reg.rooms[NormalizeCode(roomID)]
	if !exists {
		return ""
	}
	return r.TurnUserID
}

// HostOf returns the current host's user id.
func (reg *Registry) HostOf(roomID string) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, exists := reg.rooms[NormalizeCode(roomID)]
	if !exists {
		return ""
	}
	return r.HostID
}

// Listing is one row of the public room browser.
type Listing struct {
	RoomID        string `json:"roomId"`
	Meta          Meta   `json:"meta"`
	UsersCount    int    `json:"usersCount"`
	HasPassword   bool   `json:"hasPassword"`
	IsWaitingRoom bool   `json:"isWaitingRoom,omitempty"`

	// InsufficientDeadline is the pending force-close instant (unix millis)
	// of an under-staffed 2v2 room, so a re-fetching client can resume the
	// countdown. Zero when no announced countdown is pending.
	InsufficientDeadline int64 `json:"insufficientDeadline,omitempty"`
}

// Listings returns one row per live room.
func (reg *Registry) Listings() []Listing {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]Listing, 0, len(reg.rooms))
	for code, r := range reg.rooms {
		row := Listing{
			RoomID:      code,
			Meta:        r.Meta,
			UsersCount:  len(r.Participants),
			HasPassword: r.Meta.Password != "",
		}
		if r.insufficientAnnounced {
			row.InsufficientDeadline = r.insufficientDeadline.UnixMilli()
		}
		out = append(out, row)
	}
	return out
}
