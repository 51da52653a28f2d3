// internal/handlers/router.go
package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/TiennDungg1606/rubik-socket-server/internal/room"
	"github.com/TiennDungg1606/rubik-socket-server/internal/waiting"
)

// Inbound event names. Names not listed here are relayed verbatim if they
// appear in passthroughEvents, otherwise dropped.
const (
	msgJoinRoom  = "join-room"
	msgLeaveRoom = "leave-room"
	msgSolve     = "solve"

	msgTimerUpdate    = "timer-update"
	msgTimerUpdate2v2 = "timer-update-2vs2"

	msgLockDue2DNF      = "lock-due-2dnf"
	msgUnlockDueRematch = "unlock-due-rematch"

	msgRematchRequest  = "rematch-request"
	msgRematchAccepted = "rematch-accepted"
	msgRematchDeclined = "rematch-declined"
	msgRematchCancel   = "rematch-cancel"

	msgRematch2v2Request = "rematch2v2-request"
	msgRematch2v2Respond = "rematch2v2-respond"
	msgRematch2v2Decline = "rematch2v2-decline"
	msgRematch2v2Cancel  = "rematch2v2-cancel"

	msgCreateWaitingRoom = "create-waiting-room"
	msgJoinWaitingRoom   = "join-waiting-room"
	msgLeaveWaitingRoom  = "leave-waiting-room"
	msgToggleReady       = "toggle-ready"
	msgToggleObserver    = "toggle-observer"
	msgStartGame         = "start-game"
	msgSwapSeatRequest   = "swap-seat-request"
	msgSwapSeatResponse  = "swap-seat-response"

	msgGetActiveRooms = "get-active-rooms"
)

// Additional outbound event names emitted by the router itself.
const (
	EventActiveRooms        = "active-rooms"
	EventWaitingRoomCreated = "waiting-room-created"
	EventLockDue2DNF        = "lock-due-2dnf"
	EventUnlockDueRematch   = "unlock-due-rematch"
	EventError              = "error"
)

// passthroughEvents are relayed to the sender's room untouched, sender
// excluded. They carry client-to-client traffic (chat, WebRTC signalling,
// media toggles, inspection-phase notices) the server does not interpret.
var passthroughEvents = map[string]bool{
	"chat":            true,
	"signal":          true,
	"user-cam-toggle": true,
	"user-mic-toggle": true,
	"timer-prep":      true,
	"timer-prep-2vs2": true,
}

type joinRoomMsg struct {
	RoomID      string    `json:"roomId"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	Avatar      string    `json:"avatar"`
	GameMode    room.Mode `json:"gameMode"`
	Event       string    `json:"event"`
	DisplayName string    `json:"displayName"`
	Password    string    `json:"password"`
}

type solveMsg struct {
	RoomID string `json:"roomId"`
	Time   int64  `json:"time"`
}

type roomMsg struct {
	RoomID string `json:"roomId"`
}

type respondMsg struct {
	RoomID   string `json:"roomId"`
	Accepted bool   `json:"accepted"`
}

type createLobbyMsg struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Avatar      string `json:"avatar"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Event       string `json:"event"`
}

type joinLobbyMsg struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Avatar      string `json:"avatar"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Event       string `json:"event"`
}

type swapRequestMsg struct {
	ToUserID string `json:"toUserId"`
}

type swapResponseMsg struct {
	FromUserID string `json:"fromUserId"`
	Accepted   bool   `json:"accepted"`
}

// dispatch routes one inbound envelope. Malformed or out-of-state messages
// are dropped after a debug log; only join rejections produce a reply, and
// it goes to the offending socket alone.
func (srv *SocketServer) dispatch(s *Socket, env Envelope) {
	if passthroughEvents[env.Event] {
		srv.relay(s, env)
		return
	}

	switch env.Event {
	case msgJoinRoom:
		srv.handleJoinRoom(s, env.Data)
	case msgLeaveRoom:
		srv.handleLeaveRoom(s)
	case msgSolve:
		srv.handleSolve(s, env.Data)

	case msgTimerUpdate:
		srv.handleTimerUpdate(s, env.Data, false)
	case msgTimerUpdate2v2:
		srv.handleTimerUpdate(s, env.Data, true)

	case msgLockDue2DNF:
		srv.broadcastLock(s, EventLockDue2DNF)
	case msgUnlockDueRematch:
		srv.broadcastLock(s, EventUnlockDueRematch)

	case msgRematchRequest, msgRematchDeclined, msgRematchCancel:
		srv.relayRematch1v1(s, env.Event)
	case msgRematchAccepted:
		roomID, _ := s.bindings()
		if roomID == "" {
			return
		}
		if err := srv.Registry.AcceptRematch(roomID); err != nil {
			srv.Log.Debugf("socket %s: %s: %v", s.ID, env.Event, err)
		}

	case msgRematch2v2Request:
		userID, _ := s.identity()
		roomID, _ := s.bindings()
		if err := srv.Registry.RequestRematch2v2(roomID, userID); err != nil {
			srv.Log.Debugf("socket %s: %s: %v", s.ID, env.Event, err)
		}
	case msgRematch2v2Respond:
		var msg respondMsg
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		userID, _ := s.identity()
		roomID, _ := s.bindings()
		if err := srv.Registry.RespondRematch2v2(roomID, userID, msg.Accepted); err != nil {
			srv.Log.Debugf("socket %s: %s: %v", s.ID, env.Event, err)
		}
	case msgRematch2v2Decline:
		userID, _ := s.identity()
		roomID, _ := s.bindings()
		if err := srv.Registry.RespondRematch2v2(roomID, userID, false); err != nil {
			srv.Log.Debugf("socket %s: %s: %v", s.ID, env.Event, err)
		}
	case msgRematch2v2Cancel:
		userID, _ := s.identity()
		roomID, _ := s.bindings()
		if err := srv.Registry.CancelRematch2v2(roomID, userID); err != nil {
			srv.Log.Debugf("socket %s: %s: %v", s.ID, env.Event, err)
		}

	case msgCreateWaitingRoom:
		srv.handleCreateLobby(s, env.Data)
	case msgJoinWaitingRoom:
		srv.handleJoinLobby(s, env.Data)
	case msgLeaveWaitingRoom:
		srv.handleLeaveLobby(s)
	case msgToggleReady:
		srv.lobbyOp(s, "toggle-ready", srv.Lobbies.ToggleReady)
	case msgToggleObserver:
		srv.lobbyOp(s, "toggle-observer", srv.Lobbies.ToggleObserver)
	case msgStartGame:
		srv.lobbyOp(s, "start-game", srv.Lobbies.StartGame)
	case msgSwapSeatRequest:
		var msg swapRequestMsg
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		userID, _ := s.identity()
		_, lobbyID := s.bindings()
		if err := srv.Lobbies.RequestSwapSeat(lobbyID, userID, msg.ToUserID); err != nil {
			srv.Log.Debugf("socket %s: swap-seat-request: %v", s.ID, err)
		}
	case msgSwapSeatResponse:
		var msg swapResponseMsg
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		userID, _ := s.identity()
		_, lobbyID := s.bindings()
		if err := srv.Lobbies.RespondSwapSeat(lobbyID, msg.FromUserID, userID, msg.Accepted); err != nil {
			srv.Log.Debugf("socket %s: swap-seat-response: %v", s.ID, err)
		}

	case msgGetActiveRooms:
		srv.Hub.Send(s, EventActiveRooms, srv.listings())

	default:
		srv.Log.Debugf("socket %s: unknown event %q", s.ID, env.Event)
	}
}

func (srv *SocketServer) handleJoinRoom(s *Socket, data json.RawMessage) {
	var msg joinRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		srv.Log.Debugf("socket %s: bad join-room payload: %v", s.ID, err)
		return
	}
	code := room.NormalizeCode(msg.RoomID)

	s.setIdentity(msg.UserID, msg.UserName)

	// Subscribe before joining so the socket sees its own roster broadcast.
	srv.Hub.Subscribe(s, code)
	err := srv.Registry.Join(room.JoinParams{
		RoomID:      msg.RoomID,
		UserID:      msg.UserID,
		UserName:    msg.UserName,
		Avatar:      msg.Avatar,
		GameMode:    msg.GameMode,
		Event:       msg.Event,
		DisplayName: msg.DisplayName,
		Password:    msg.Password,
	})
	if err != nil {
		srv.Hub.Unsubscribe(s, code)
		switch {
		case errors.Is(err, room.ErrWrongPassword):
			srv.Hub.Send(s, room.EventWrongPassword, nil)
		case errors.Is(err, room.ErrRoomFull):
			srv.Hub.Send(s, room.EventRoomFull, nil)
		default:
			srv.Log.Debugf("socket %s: join-room rejected: %v", s.ID, err)
		}
		return
	}

	if prev, _ := s.bindings(); prev != "" && prev != code {
		srv.Hub.Unsubscribe(s, prev)
		srv.Registry.Leave(prev, msg.UserID)
	}
	s.setRoom(code)
	srv.Hub.Send(s, room.EventRoomJoined, map[string]string{"roomId": code})
}

func (srv *SocketServer) handleLeaveRoom(s *Socket) {
	userID, _ := s.identity()
	roomID, _ := s.bindings()
	if roomID == "" {
		return
	}
	srv.Timers.Stop(roomID, userID)
	srv.Registry.Leave(roomID, userID)
	srv.Hub.Unsubscribe(s, roomID)
	s.setRoom("")
}

func (srv *SocketServer) handleSolve(s *Socket, data json.RawMessage) {
	var msg solveMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	userID, userName := s.identity()
	roomID, _ := s.bindings()
	if msg.RoomID != "" {
		roomID = msg.RoomID
	}
	if userID == "" || roomID == "" {
		return
	}
	if _, err := srv.Registry.RecordSolve(roomID, userID, userName, msg.Time); err != nil {
		srv.Log.Debugf("socket %s: solve: %v", s.ID, err)
	}
}

type timerUpdateMsg struct {
	Running bool `json:"running"`
}

// handleTimerUpdate drives the live stopwatch relay. The 2vs2 variant only
// accepts updates from the turn holder; in 1v1 both players time
// simultaneously so no gate applies.
func (srv *SocketServer) handleTimerUpdate(s *Socket, data json.RawMessage, turnGated bool) {
	var msg timerUpdateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	userID, _ := s.identity()
	roomID, _ := s.bindings()
	if userID == "" || roomID == "" {
		return
	}
	if turnGated && srv.Registry.CurrentTurn(roomID) != userID {
		srv.Log.Debugf("socket %s: timer update out of turn", s.ID)
		return
	}
	if msg.Running {
		srv.Timers.Start(roomID, userID)
	} else {
		srv.Timers.Stop(roomID, userID)
	}
}

// broadcastLock relays a DNF-lock transition. The decision is authoritative
// for everyone, so the sender is identified server-side and the notice goes
// to the whole room, sender included.
func (srv *SocketServer) broadcastLock(s *Socket, event string) {
	userID, _ := s.identity()
	roomID, _ := s.bindings()
	if userID == "" || roomID == "" {
		return
	}
	srv.Hub.EmitToRoom(room.NormalizeCode(roomID), event, map[string]string{"lockedByUserId": userID})
}

// relay forwards a passthrough event to the sender's current scope (active
// room first, waiting room otherwise), sender excluded.
func (srv *SocketServer) relay(s *Socket, env Envelope) {
	userID, _ := s.identity()
	roomID, lobbyID := s.bindings()
	switch {
	case roomID != "":
		srv.Hub.EmitToRoomExcept(room.NormalizeCode(roomID), userID, env.Event, env.Data)
	case lobbyID != "":
		srv.Hub.EmitToRoomExcept(waiting.Channel(lobbyID), userID, env.Event, env.Data)
	}
}

func (srv *SocketServer) relayRematch1v1(s *Socket, event string) {
	userID, _ := s.identity()
	roomID, _ := s.bindings()
	if userID == "" || roomID == "" {
		return
	}
	srv.Hub.EmitToRoomExcept(room.NormalizeCode(roomID), userID, event, map[string]string{"fromUserId": userID})
}

func (srv *SocketServer) handleCreateLobby(s *Socket, data json.RawMessage) {
	var msg createLobbyMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	code := room.NormalizeCode(msg.RoomID)
	if code == "" {
		code = newLobbyCode()
	}

	s.setIdentity(msg.UserID, msg.UserName)
	srv.Hub.Subscribe(s, waiting.Channel(code))
	err := srv.Lobbies.Create(waiting.CreateParams{
		RoomID:      code,
		UserID:      msg.UserID,
		UserName:    msg.UserName,
		Avatar:      msg.Avatar,
		DisplayName: msg.DisplayName,
		Password:    msg.Password,
		Event:       msg.Event,
	})
	if err != nil {
		srv.Hub.Unsubscribe(s, waiting.Channel(code))
		srv.Log.Debugf("socket %s: create-waiting-room: %v", s.ID, err)
		return
	}
	s.setLobby(code)
	srv.Hub.Send(s, EventWaitingRoomCreated, map[string]string{"roomId": code})
}

func (srv *SocketServer) handleJoinLobby(s *Socket, data json.RawMessage) {
	var msg joinLobbyMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	code := room.NormalizeCode(msg.RoomID)

	s.setIdentity(msg.UserID, msg.UserName)
	srv.Hub.Subscribe(s, waiting.Channel(code))
	err := srv.Lobbies.Join(waiting.JoinParams{
		RoomID:      msg.RoomID,
		UserID:      msg.UserID,
		UserName:    msg.UserName,
		Avatar:      msg.Avatar,
		DisplayName: msg.DisplayName,
		Password:    msg.Password,
		Event:       msg.Event,
	})
	if err != nil {
		srv.Hub.Unsubscribe(s, waiting.Channel(code))
		switch {
		case errors.Is(err, room.ErrWrongPassword):
			srv.Hub.Send(s, room.EventWrongPassword, nil)
		case errors.Is(err, waiting.ErrGameAlreadyStarted):
			// Late arrival: send them straight to the active room.
			meta, _ := srv.Registry.MetaFor(code)
			srv.Hub.Send(s, waiting.EventGameStarted, waiting.GameStartedPayload{
				RoomID:   code,
				GameMode: meta.GameMode,
				Players:  srv.Registry.RoomUsers(code),
			})
		default:
			srv.Log.Debugf("socket %s: join-waiting-room: %v", s.ID, err)
		}
		return
	}
	s.setLobby(code)
}

func (srv *SocketServer) handleLeaveLobby(s *Socket) {
	userID, _ := s.identity()
	_, lobbyID := s.bindings()
	if lobbyID == "" {
		return
	}
	srv.Lobbies.Leave(lobbyID, userID)
	srv.Hub.Unsubscribe(s, waiting.Channel(lobbyID))
	s.setLobby("")
}

func (srv *SocketServer) lobbyOp(s *Socket, name string, op func(roomID, userID string) error) {
	userID, _ := s.identity()
	_, lobbyID := s.bindings()
	if userID == "" || lobbyID == "" {
		return
	}
	if err := op(lobbyID, userID); err != nil {
		switch {
		case errors.Is(err, waiting.ErrNotCreator), errors.Is(err, room.ErrPreconditionFailed):
			srv.Hub.Send(s, EventError, map[string]string{"message": err.Error()})
		default:
			srv.Log.Debugf("socket %s: %s: %v", s.ID, name, err)
		}
	}
}

// listings merges active rooms and open waiting rooms for the room browser.
func (srv *SocketServer) listings() []room.Listing {
	rows := srv.Registry.Listings()
	return append(rows, srv.Lobbies.Listings()...)
}

// newLobbyCode derives a short shareable room code.
func newLobbyCode() string {
	return strings.ToUpper(uuid.NewString()[:6])
}
