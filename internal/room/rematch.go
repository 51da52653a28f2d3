// internal/room/rematch.go
package room

// rematchState tracks one in-flight 2v2 rematch vote. The initiator counts as
// an implicit yes; the vote resolves when every active (non-observer)
// participant has accepted, and dissolves on the first decline or cancel.
type rematchState struct {
	initiator string
	accepted  map[string]bool
}

func (r *Room) clearRematchVote(userID string) {
	if r.rematch == nil {
		return
	}
	if r.rematch.initiator == userID {
		r.rematch = nil
		return
	}
	delete(r.rematch.accepted, userID)
}

// AcceptRematch restarts a 1v1 round after the opponent accepted. The 1v1
// offer/decline/cancel messages are plain relays between the two sockets;
// only acceptance touches room state.
func (reg *Registry) AcceptRematch(roomID string) error {
	code := NormalizeCode(roomID)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[code]
	if !exists {
		return ErrRoomNotFound
	}
	r.solveCount = 0
	r.scrambles = reg.scrambler.GenerateBatch(r.Meta.Event, BatchSize)
	reg.bc.EmitToRoom(code, EventRematchAccepted, nil)
	reg.emitScramble(r, 0)
	return nil
}

// RequestRematch2v2 opens a team-game rematch vote and notifies the other
// sockets in the room. A second request while a vote is pending restarts the
// vote under the new initiator.
func (reg *Registry) RequestRematch2v2(roomID, fromUserID string) error {
	code := NormalizeCode(roomID)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[code]
	if !exists {
		return ErrRoomNotFound
	}
	if _, member := r.participant(fromUserID); !member {
		return ErrInvalidInput
	}
	r.rematch = &rematchState{
		initiator: fromUserID,
		accepted:  map[string]bool{fromUserID: true},
	}
	reg.bc.EmitToRoomExcept(code, fromUserID, EventRematch2v2Request, map[string]string{"fromUserId": fromUserID})
	return nil
}

// RespondRematch2v2 records one player's answer. A decline ends the vote for
// everyone; once the last active participant accepts, the round restarts and
// the turn returns to the host.
func (reg *Registry) RespondRematch2v2(roomID, userID string, accepted bool) error {
	code := NormalizeCode(roomID)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[code]
	if !exists {
		return ErrRoomNotFound
	}
	if r.rematch == nil {
		return ErrPreconditionFailed
	}
	if i, member := r.participant(userID); !member || r.Participants[i].IsObserver() {
		return ErrInvalidInput
	}

	if !accepted {
		r.rematch = nil
		reg.bc.EmitToRoom(code, EventRematch2v2Declined, map[string]string{"userId": userID})
		return nil
	}

	r.rematch.accepted[userID] = true
	for _, p := range r.Participants {
		if !p.IsObserver() && !r.rematch.accepted[p.UserID] {
			// Still waiting on somebody.
			return nil
		}
	}

	r.rematch = nil
	r.solveCount = 0
	r.scrambles = reg.scrambler.GenerateBatch(r.Meta.Event, BatchSize)
	reg.bc.EmitToRoom(code, EventRematch2v2Accepted, nil)
	reg.emitScramble(r, 0)
	r.setTurn(r.HostID)
	reg.broadcastTurn(r)
	return nil
}

// CancelRematch2v2 withdraws a pending vote. Only the initiator may cancel.
func (reg *Registry) CancelRematch2v2(roomID, userID string) error {
	code := NormalizeCode(roomID)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[code]
	if !exists {
		return ErrRoomNotFound
	}
	if r.rematch == nil || r.rematch.initiator != userID {
		return ErrPreconditionFailed
	}
	r.rematch = nil
	reg.bc.EmitToRoomExcept(code, userID, EventRematch2v2Cancel, map[string]string{"userId": userID})
	return nil
}
