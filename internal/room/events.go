// internal/room/events.go
package room

// Event names broadcast by the registry and lifecycle supervisor. The names
// are wire-compatible with the original client.
const (
	EventRoomUsers           = "room-users"
	EventRoomTurn            = "room-turn"
	EventRoomJoined          = "room-joined"
	EventRoomReset           = "room-reset"
	EventScramble            = "scramble"
	EventOpponentSolve       = "opponent-solve"
	EventUpdateActiveRooms   = "update-active-rooms"
	EventWrongPassword       = "wrong-password"
	EventRoomFull            = "room-full"
	EventInsufficientPlayers = "room-insufficient-players"
	EventPlayersRestored     = "room-players-restored"
	EventRoomForceClosed     = "room-force-closed"

	EventRematchRequest  = "rematch-request"
	EventRematchAccepted = "rematch-accepted"
	EventRematchDeclined = "rematch-declined"
	EventRematchCancel   = "rematch-cancel"

	EventRematch2v2Request  = "rematch2v2-request"
	EventRematch2v2Respond  = "rematch2v2-respond"
	EventRematch2v2Accepted = "rematch2v2-accepted"
	EventRematch2v2Declined = "rematch2v2-declined"
	EventRematch2v2Cancel   = "rematch2v2-cancel"
)

// Broadcaster is the transport-side pub/sub primitive the registry publishes
// through. The websocket hub implements it; tests substitute a recorder.
type Broadcaster interface {
	// EmitToRoom delivers an event to every member of the room.
	EmitToRoom(roomID, event string, payload interface{})
	// EmitToRoomExcept delivers an event to every member except the named user.
	EmitToRoomExcept(roomID, exceptUserID, event string, payload interface{})
	// EmitGlobal delivers an event to every connected socket, in or out of rooms.
	EmitGlobal(event string, payload interface{})
}

// ScrambleProvider is the opaque scramble-generation capability consumed by
// the registry.
type ScrambleProvider interface {
	GenerateBatch(event string, count int) []string
}

// RoomUsersPayload is the roster broadcast sent after every membership change.
type RoomUsersPayload struct {
	Users  []Participant `json:"users"`
	HostID *string       `json:"hostId"`
}

// RoomTurnPayload announces the user whose solve is currently valid.
type RoomTurnPayload struct {
	TurnUserID *string `json:"turnUserId"`
}

// ScramblePayload reveals one scramble from the room's batch.
type ScramblePayload struct {
	Scramble string `json:"scramble"`
	Index    int    `json:"index"`
}

// SolvePayload is the raw solve result relayed to the rest of the room.
type SolvePayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Time     int64  `json:"time"`
}

// InsufficientPayload carries the force-close deadline in unix milliseconds.
type InsufficientPayload struct {
	Deadline int64 `json:"deadline"`
}

func strptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
