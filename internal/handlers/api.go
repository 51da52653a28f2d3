// internal/handlers/api.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/TiennDungg1606/rubik-socket-server/internal/middleware"
	"github.com/TiennDungg1606/rubik-socket-server/internal/room"
	"github.com/TiennDungg1606/rubik-socket-server/internal/waiting"
)

// NewRouter assembles the full HTTP surface: the websocket endpoint, the
// read-only room browser API and the Stringee token endpoint.
func NewRouter(srv *SocketServer, log *logrus.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(log))
	r.Use(middleware.CORS())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/ws", srv.HandleWS)

	r.Get("/active-rooms", srv.handleActiveRooms)
	r.Get("/room-users/{roomID}", srv.handleRoomUsers)
	r.Get("/room-meta/{roomID}", srv.handleRoomMeta)
	r.Post("/create-waiting-room", srv.handleCreateWaitingRoom)
	r.Get("/stringee-token", srv.handleStringeeToken)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (srv *SocketServer) handleActiveRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, srv.listings())
}

// handleRoomUsers serves the roster of an active room, or the player list of
// a waiting room when no active room matches.
func (srv *SocketServer) handleRoomUsers(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	if users := srv.Registry.RoomUsers(roomID); users != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"roomId": room.NormalizeCode(roomID), "users": users})
		return
	}
	if players := srv.Lobbies.Players(roomID); players != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"roomId": room.NormalizeCode(roomID), "players": players})
		return
	}
	writeError(w, http.StatusNotFound, "room not found")
}

func (srv *SocketServer) handleRoomMeta(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	if meta, ok := srv.Registry.MetaFor(roomID); ok {
		writeJSON(w, http.StatusOK, meta)
		return
	}
	if meta, ok := srv.Lobbies.MetaFor(roomID); ok {
		writeJSON(w, http.StatusOK, meta)
		return
	}
	writeError(w, http.StatusNotFound, "room not found")
}

type createWaitingRoomRequest struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Avatar      string `json:"avatar"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Event       string `json:"event"`
}

// handleCreateWaitingRoom opens a lobby over plain HTTP, for clients that
// create the room before opening their socket. The creator still has to join
// via websocket to be seated live.
func (srv *SocketServer) handleCreateWaitingRoom(w http.ResponseWriter, r *http.Request) {
	var req createWaitingRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	code := room.NormalizeCode(req.RoomID)
	if code == "" {
		code = newLobbyCode()
	}

	err := srv.Lobbies.Create(waiting.CreateParams{
		RoomID:      code,
		UserID:      req.UserID,
		UserName:    req.UserName,
		Avatar:      req.Avatar,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Event:       req.Event,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"roomId": code})
	case err == waiting.ErrLobbyExists:
		writeError(w, http.StatusConflict, "room already exists")
	case err == room.ErrInvalidInput:
		writeError(w, http.StatusBadRequest, "userId and userName are required")
	default:
		srv.Log.Warnf("create-waiting-room: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
