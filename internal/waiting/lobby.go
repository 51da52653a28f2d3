// internal/waiting/lobby.go
package waiting

import (
	"time"

	"github.com/TiennDungg1606/rubik-socket-server/internal/room"
)

// Player roles inside a waiting room.
const (
	RoleCreator  = "creator"
	RolePlayer   = "player"
	RoleObserver = "observer"
)

// Outbound waiting-room event names.
const (
	EventWaitingRoomUpdated = "waiting-room-updated"
	EventGameStarted        = "game-started"
	EventSwapSeatRequest    = "swap-seat-request"
	EventSwapSeatResponse   = "swap-seat-response"
)

// GameStartedPayload is broadcast when the creator launches the match. It
// carries everything a client needs to transition into the active room.
type GameStartedPayload struct {
	RoomID   string             `json:"roomId"`
	GameMode room.Mode          `json:"gameMode"`
	Players  []room.Participant `json:"players"`
}

// SwapSeatPayload is the outcome of a seat-swap offer, relayed to the lobby.
type SwapSeatPayload struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Accepted   bool   `json:"accepted"`
}

// Channel is the broadcast scope a lobby's sockets subscribe to. Waiting
// rooms and active rooms may share an id, so lobby traffic is prefixed.
func Channel(roomID string) string {
	return "waiting-" + room.NormalizeCode(roomID)
}

// Player is one occupant of a waiting room. IsObserver records an explicit
// choice to sit out; Role == RoleObserver alone can also mean the player
// overflowed the four seats and will be reseated when one frees up.
type Player struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	Avatar     string `json:"avatar,omitempty"`
	Role       string `json:"role"`
	Team       string `json:"team,omitempty"`
	Position   int    `json:"position,omitempty"`
	IsReady    bool   `json:"isReady"`
	IsObserver bool   `json:"isObserver"`
}

// Lobby is a pre-game staging room for one 2v2 match.
type Lobby struct {
	RoomID      string
	Players     []Player
	CreatorID   string
	GameStarted bool
	Meta        room.Meta
	CreatedAt   time.Time
}

// StatePayload is the full lobby snapshot broadcast on every change.
type StatePayload struct {
	RoomID      string   `json:"roomId"`
	Players     []Player `json:"players"`
	CreatorID   string   `json:"creatorId"`
	GameStarted bool     `json:"gameStarted"`
	DisplayName string   `json:"displayName"`
	Event       string   `json:"event"`
	HasPassword bool     `json:"hasPassword"`
}

func (l *Lobby) snapshot() StatePayload {
	players := make([]Player, len(l.Players))
	copy(players, l.Players)
	return StatePayload{
		RoomID:      l.RoomID,
		Players:     players,
		CreatorID:   l.CreatorID,
		GameStarted: l.GameStarted,
		DisplayName: l.Meta.DisplayName,
		Event:       l.Meta.Event,
		HasPassword: l.Meta.Password != "",
	}
}

func (l *Lobby) player(userID string) (int, bool) {
	for i := range l.Players {
		if l.Players[i].UserID == userID {
			return i, true
		}
	}
	return -1, false
}

// seated returns the indices of players occupying the four seats.
func (l *Lobby) seated() []int {
	var out []int
	for i := range l.Players {
		if l.Players[i].Team != "" {
			out = append(out, i)
		}
	}
	return out
}

// reorganizeSeating reassigns every seat from scratch. The creator is pinned
// to team1 seat 1 and is always ready; the next three non-observers fill
// team1 seat 2, team2 seat 1, team2 seat 2 in arrival order; everyone past
// the fourth seat spectates until a seat frees up. Players who chose to
// observe keep that role and never hold a seat.
func (l *Lobby) reorganizeSeating() {
	var seatable []int
	for i := range l.Players {
		if l.Players[i].IsObserver {
			continue
		}
		if l.Players[i].UserID == l.CreatorID {
			seatable = append([]int{i}, seatable...)
		} else {
			seatable = append(seatable, i)
		}
	}

	seats := []struct {
		team string
		pos  int
	}{
		{"team1", 1},
		{"team1", 2},
		{"team2", 1},
		{"team2", 2},
	}

	for n, i := range seatable {
		p := &l.Players[i]
		if n < len(seats) {
			p.Team = seats[n].team
			p.Position = seats[n].pos
			if p.UserID == l.CreatorID {
				p.Role = RoleCreator
				p.IsReady = true
			} else {
				p.Role = RolePlayer
			}
		} else {
			p.Team = ""
			p.Position = 0
			p.Role = RoleObserver
			p.IsReady = false
		}
	}

	for i := range l.Players {
		if !l.Players[i].IsObserver {
			continue
		}
		l.Players[i].Team = ""
		l.Players[i].Position = 0
		if l.Players[i].UserID == l.CreatorID {
			// A spectating creator keeps the role and stays ready.
			l.Players[i].Role = RoleCreator
			l.Players[i].IsReady = true
		} else {
			l.Players[i].Role = RoleObserver
			l.Players[i].IsReady = false
		}
	}
}

// readyToStart reports whether both teams are full and every seated
// non-creator player has readied up.
func (l *Lobby) readyToStart() bool {
	if len(l.seated()) != 4 {
		return false
	}
	for _, i := range l.seated() {
		if !l.Players[i].IsReady {
			return false
		}
	}
	return true
}

// participants converts the full player list, observers included, into room
// participants for promotion.
func (l *Lobby) participants() []room.Participant {
	out := make([]room.Participant, 0, len(l.Players))
	for _, p := range l.Players {
		role := p.Role
		if p.Team == "" {
			role = RoleObserver
		}
		out = append(out, room.Participant{
			UserID:   p.UserID,
			UserName: p.UserName,
			Avatar:   p.Avatar,
			Team:     p.Team,
			Position: p.Position,
			Role:     role,
		})
	}
	return out
}
