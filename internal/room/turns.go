// internal/room/turns.go
package room

import "sort"

// ComputeTurnOrder derives one full round of play from the participant list:
// team1 sorted by seat position, then team2 sorted by seat position. When no
// team assignments exist (direct-join rooms), the order is join order.
// Observers never appear in the order.
func ComputeTurnOrder(participants []Participant) []string {
	var team1, team2, unseated []Participant
	for _, p := range participants {
		switch {
		case p.IsObserver():
		case p.Team == "team1":
			team1 = append(team1, p)
		case p.Team == "team2":
			team2 = append(team2, p)
		default:
			unseated = append(unseated, p)
		}
	}

	if len(team1) == 0 && len(team2) == 0 {
		order := make([]string, 0, len(unseated))
		for _, p := range unseated {
			order = append(order, p.UserID)
		}
		return order
	}

	byPos := func(ps []Participant) {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Position < ps[j].Position })
	}
	byPos(team1)
	byPos(team2)

	order := make([]string, 0, len(team1)+len(team2))
	for _, p := range team1 {
		order = append(order, p.UserID)
	}
	for _, p := range team2 {
		order = append(order, p.UserID)
	}
	return order
}

// resyncTurn recomputes the turn order after a roster or seating change. The
// cursor stays on preferred when that user is still in the order; otherwise
// it is clamped to a valid index. An empty roster clears all turn state.
func (r *Room) resyncTurn(preferred string) {
	r.turnOrder = ComputeTurnOrder(r.Participants)
	if len(r.turnOrder) == 0 {
		r.turnIndex = 0
		r.TurnUserID = ""
		return
	}

	idx := -1
	if preferred != "" {
		for i, id := range r.turnOrder {
			if id == preferred {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		if r.turnIndex >= 0 && r.turnIndex < len(r.turnOrder) {
			idx = r.turnIndex
		} else {
			idx = 0
		}
	}
	r.turnIndex = idx
	r.TurnUserID = r.turnOrder[idx]
}

// setTurn points the cursor at the given user when present in the order;
// used to hand the turn back to the host on round resets.
func (r *Room) setTurn(userID string) {
	r.TurnUserID = userID
	for i, id := range r.turnOrder {
		if id == userID {
			r.turnIndex = i
			return
		}
	}
	r.turnIndex = 0
}

// advanceTurn moves the turn to the participant after the solver. 1v1 hands
// the turn to the other occupant; 2v2 cycles the turn order from the solver's
// slot, falling back to the stored cursor when the solver is no longer in the
// order (roster changed mid-round).
func (r *Room) advanceTurn(solverID string) string {
	if r.Meta.GameMode != ModeTwoVsTwo {
		for _, p := range r.Participants {
			if p.UserID != solverID && !p.IsObserver() {
				r.TurnUserID = p.UserID
				return p.UserID
			}
		}
		return r.TurnUserID
	}

	if len(r.turnOrder) == 0 {
		return r.TurnUserID
	}
	idx := -1
	for i, id := range r.turnOrder {
		if id == solverID {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = r.turnIndex
	}
	r.turnIndex = (idx + 1) % len(r.turnOrder)
	r.TurnUserID = r.turnOrder[r.turnIndex]
	return r.TurnUserID
}
