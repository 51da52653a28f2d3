// internal/waiting/manager.go
package waiting

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TiennDungg1606/rubik-socket-server/internal/room"
)

var (
	ErrLobbyNotFound      = errors.New("waiting room not found")
	ErrLobbyExists        = errors.New("waiting room already exists")
	ErrNotCreator         = errors.New("only the room creator may do that")
	ErrGameAlreadyStarted = errors.New("game already started")
)

// Manager owns all pre-game waiting rooms and promotes them into active
// rooms once the creator starts the match. It shares the registry's timer
// supervisor; lobby timers are keyed under the lobby channel so they never
// collide with the promoted room's timers.
type Manager struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby

	reg *room.Registry
	bc  room.Broadcaster
	log *logrus.Logger
	sup *room.Supervisor

	// IdleTimeout evicts lobbies with no activity; TeardownGrace keeps a
	// promoted lobby around briefly so its sockets can follow the redirect.
	IdleTimeout   time.Duration
	TeardownGrace time.Duration
}

// NewManager returns an empty manager promoting into reg.
func NewManager(reg *room.Registry, bc room.Broadcaster, log *logrus.Logger) *Manager {
	return &Manager{
		lobbies:       make(map[string]*Lobby),
		reg:           reg,
		bc:            bc,
		log:           log,
		sup:           reg.Supervisor(),
		IdleTimeout:   5 * time.Minute,
		TeardownGrace: 2 * time.Second,
	}
}

// CreateParams carries one create-waiting-room request.
type CreateParams struct {
	RoomID      string
	UserID      string
	UserName    string
	Avatar      string
	DisplayName string
	Password    string
	Event       string
}

// Create opens a new waiting room with the requesting user as creator.
func (m *Manager) Create(p CreateParams) error {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.UserName) == "" {
		return room.ErrInvalidInput
	}
	code := room.NormalizeCode(p.RoomID)
	if code == "" {
		return room.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.lobbies[code]; exists {
		return ErrLobbyExists
	}
	m.createLocked(code, p)
	return nil
}

// createLocked installs a new lobby with p's user as creator. Caller holds
// the manager lock and has checked the code is free.
func (m *Manager) createLocked(code string, p CreateParams) {
	event := p.Event
	if event == "" {
		event = "3x3"
	}
	display := p.DisplayName
	if display == "" {
		display = code
	}
	l := &Lobby{
		RoomID:    code,
		CreatorID: p.UserID,
		Meta: room.Meta{
			GameMode:    room.ModeTwoVsTwo,
			Event:       event,
			DisplayName: display,
			Password:    p.Password,
		},
		CreatedAt: time.Now(),
	}
	l.Players = append(l.Players, Player{UserID: p.UserID, UserName: p.UserName, Avatar: p.Avatar})
	l.reorganizeSeating()
	m.lobbies[code] = l

	m.armIdle(code)
	m.broadcast(l)
	m.bc.EmitGlobal(room.EventUpdateActiveRooms, nil)
	m.log.WithFields(logrus.Fields{"room": code, "creator": p.UserID}).Info("waiting room created")
}

// JoinParams carries one join-waiting-room request.
type JoinParams struct {
	RoomID      string
	UserID      string
	UserName    string
	Avatar      string
	DisplayName string
	Password    string
	Event       string
}

// Join admits a user into a waiting room, opening the room if it does not
// exist yet; the first joiner becomes its creator. The password gate applies
// to every newcomer; members re-joining are upserted without a duplicate
// entry.
func (m *Manager) Join(p JoinParams) error {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.UserName) == "" {
		return room.ErrInvalidInput
	}
	code := room.NormalizeCode(p.RoomID)
	if code == "" {
		return room.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.lobbies[code]
	if !exists {
		m.createLocked(code, CreateParams{
			RoomID:      code,
			UserID:      p.UserID,
			UserName:    p.UserName,
			Avatar:      p.Avatar,
			DisplayName: p.DisplayName,
			Password:    p.Password,
			Event:       p.Event,
		})
		return nil
	}
	if l.GameStarted {
		return ErrGameAlreadyStarted
	}
	if l.Meta.Password != "" && p.Password != l.Meta.Password {
		return room.ErrWrongPassword
	}
	if p.DisplayName != "" {
		l.Meta.DisplayName = p.DisplayName
	}

	if i, member := l.player(p.UserID); member {
		l.Players[i].UserName = p.UserName
		if p.Avatar != "" {
			l.Players[i].Avatar = p.Avatar
		}
	} else {
		l.Players = append(l.Players, Player{UserID: p.UserID, UserName: p.UserName, Avatar: p.Avatar})
	}

	l.reorganizeSeating()
	m.armIdle(code)
	m.broadcast(l)
	return nil
}

// Leave removes a player after an explicit leave message.
func (m *Manager) Leave(roomID, userID string) {
	m.remove(roomID, userID, "leave")
}

// Disconnect removes a player after a transport-level disconnect.
func (m *Manager) Disconnect(roomID, userID string) {
	m.remove(roomID, userID, "disconnect")
}

func (m *Manager) remove(roomID, userID, cause string) {
	code := room.NormalizeCode(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.lobbies[code]
	if !exists {
		return
	}
	i, member := l.player(userID)
	if !member {
		return
	}
	l.Players = append(l.Players[:i], l.Players[i+1:]...)

	if len(l.Players) == 0 {
		m.deleteLobbyLocked(code)
		return
	}

	if l.CreatorID == userID {
		// Prefer an active player as the new creator; fall back to whoever
		// is left.
		l.CreatorID = l.Players[0].UserID
		for _, p := range l.Players {
			if !p.IsObserver {
				l.CreatorID = p.UserID
				break
			}
		}
	}

	l.reorganizeSeating()
	m.armIdle(code)
	m.broadcast(l)
	m.log.WithFields(logrus.Fields{"room": code, "user": userID, "cause": cause}).Info("player left waiting room")
}

// ToggleReady flips a seated player's ready flag. The creator is always
// ready and observers have nothing to ready up for.
func (m *Manager) ToggleReady(roomID, userID string) error {
	code := room.NormalizeCode(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.lobbies[code]
	if !exists {
		return ErrLobbyNotFound
	}
	i, member := l.player(userID)
	if !member {
		return room.ErrInvalidInput
	}
	if userID == l.CreatorID || l.Players[i].Team == "" {
		return room.ErrPreconditionFailed
	}

	l.Players[i].IsReady = !l.Players[i].IsReady
	m.armIdle(code)
	m.broadcast(l)
	return nil
}

// ToggleObserver moves a player between the seats and the spectator bench.
// The creator may take the bench too; they keep the creator role (and stay
// ready) while spectating, so they can still start the game.
func (m *Manager) ToggleObserver(roomID, userID string) error {
	code := room.NormalizeCode(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.lobbies[code]
	if !exists {
		return ErrLobbyNotFound
	}
	i, member := l.player(userID)
	if !member {
		return room.ErrInvalidInput
	}

	l.Players[i].IsObserver = !l.Players[i].IsObserver
	if l.Players[i].IsObserver && userID != l.CreatorID {
		l.Players[i].IsReady = false
	}
	l.reorganizeSeating()
	m.armIdle(code)
	m.broadcast(l)
	return nil
}

// StartGame promotes the lobby into an active room. Only the creator may
// start, and only with two full, fully readied teams.
func (m *Manager) StartGame(roomID, userID string) error {
	code := room.NormalizeCode(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.lobbies[code]
	if !exists {
		return ErrLobbyNotFound
	}
	if l.GameStarted {
		return ErrGameAlreadyStarted
	}
	if userID != l.CreatorID {
		return ErrNotCreator
	}
	if !l.readyToStart() {
		return room.ErrPreconditionFailed
	}

	l.GameStarted = true
	players := l.participants()
	m.reg.CreateFromLobby(code, players, l.CreatorID, l.Meta)

	m.bc.EmitToRoom(Channel(code), EventGameStarted, GameStartedPayload{
		RoomID:   code,
		GameMode: l.Meta.GameMode,
		Players:  players,
	})
	m.bc.EmitGlobal(room.EventUpdateActiveRooms, nil)
	m.log.WithFields(logrus.Fields{"room": code, "players": len(l.Players)}).Info("game started from waiting room")

	// Keep the lobby briefly so sockets still in it receive the redirect.
	m.sup.Disarm(room.TimerLobbyIdle, Channel(code))
	m.sup.Arm(room.TimerLobbyTeardown, Channel(code), m.TeardownGrace, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if cur, ok := m.lobbies[code]; ok && cur.GameStarted {
			delete(m.lobbies, code)
			m.bc.EmitGlobal(room.EventUpdateActiveRooms, nil)
		}
	})
	return nil
}

// RequestSwapSeat relays a seat-swap offer to the lobby. Both parties must
// currently hold seats.
func (m *Manager) RequestSwapSeat(roomID, fromUserID, toUserID string) error {
	code := room.NormalizeCode(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.lobbies[code]
	if !exists {
		return ErrLobbyNotFound
	}
	fi, fok := l.player(fromUserID)
	ti, tok := l.player(toUserID)
	if !fok || !tok {
		return room.ErrInvalidInput
	}
	if l.Players[fi].Team == "" || l.Players[ti].Team == "" {
		return room.ErrPreconditionFailed
	}

	m.bc.EmitToRoom(Channel(code), EventSwapSeatRequest, map[string]string{
		"fromUserId": fromUserID,
		"toUserId":   toUserID,
	})
	return nil
}

// RespondSwapSeat resolves a pending seat-swap offer. Acceptance exchanges
// the two seats in place; a refusal is relayed as-is.
func (m *Manager) RespondSwapSeat(roomID, fromUserID, toUserID string, accepted bool) error {
	code := room.NormalizeCode(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.lobbies[code]
	if !exists {
		return ErrLobbyNotFound
	}
	if !accepted {
		m.bc.EmitToRoom(Channel(code), EventSwapSeatResponse, SwapSeatPayload{
			FromUserID: fromUserID,
			ToUserID:   toUserID,
		})
		return nil
	}

	fi, fok := l.player(fromUserID)
	ti, tok := l.player(toUserID)
	if !fok || !tok {
		return room.ErrInvalidInput
	}
	if l.Players[fi].Team == "" || l.Players[ti].Team == "" {
		return room.ErrPreconditionFailed
	}

	l.Players[fi].Team, l.Players[ti].Team = l.Players[ti].Team, l.Players[fi].Team
	l.Players[fi].Position, l.Players[ti].Position = l.Players[ti].Position, l.Players[fi].Position
	m.bc.EmitToRoom(Channel(code), EventSwapSeatResponse, SwapSeatPayload{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Accepted:   true,
	})
	m.armIdle(code)
	m.broadcast(l)
	return nil
}

// Players returns the current player list, or nil when the lobby is gone.
func (m *Manager) Players(roomID string) []Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, exists := m.lobbies[room.NormalizeCode(roomID)]
	if !exists {
		return nil
	}
	players := make([]Player, len(l.Players))
	copy(players, l.Players)
	return players
}

// MetaFor returns lobby metadata for the REST surface.
func (m *Manager) MetaFor(roomID string) (room.Meta, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, exists := m.lobbies[room.NormalizeCode(roomID)]
	if !exists {
		return room.Meta{}, false
	}
	return l.Meta, true
}

// Listings returns one browser row per open (not yet started) lobby.
func (m *Manager) Listings() []room.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]room.Listing, 0, len(m.lobbies))
	for code, l := range m.lobbies {
		if l.GameStarted {
			continue
		}
		out = append(out, room.Listing{
			RoomID:        code,
			Meta:          l.Meta,
			UsersCount:    len(l.Players),
			HasPassword:   l.Meta.Password != "",
			IsWaitingRoom: true,
		})
	}
	return out
}

func (m *Manager) broadcast(l *Lobby) {
	m.bc.EmitToRoom(Channel(l.RoomID), EventWaitingRoomUpdated, l.snapshot())
}

// armIdle restarts the inactivity clock; every successful mutation calls it.
func (m *Manager) armIdle(code string) {
	m.sup.Arm(room.TimerLobbyIdle, Channel(code), m.IdleTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		l, exists := m.lobbies[code]
		if !exists || l.GameStarted {
			return
		}
		m.log.WithField("room", code).Info("waiting room idle timeout")
		m.deleteLobbyLocked(code)
	})
}

func (m *Manager) deleteLobbyLocked(code string) {
	if _, exists := m.lobbies[code]; !exists {
		return
	}
	delete(m.lobbies, code)
	m.sup.Disarm(room.TimerLobbyIdle, Channel(code))
	m.sup.Disarm(room.TimerLobbyTeardown, Channel(code))

	m.bc.EmitToRoom(Channel(code), EventWaitingRoomUpdated, StatePayload{RoomID: code, Players: []Player{}})
	m.bc.EmitGlobal(room.EventUpdateActiveRooms, nil)
	m.log.WithField("room", code).Info("waiting room deleted")
}
