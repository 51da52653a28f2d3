// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/TiennDungg1606/rubik-socket-server/internal/middleware"
	"github.com/TiennDungg1606/rubik-socket-server/internal/room"
	"github.com/TiennDungg1606/rubik-socket-server/internal/waiting"
)

// SocketServer ties the websocket transport to the room registry and the
// waiting-room manager.
type SocketServer struct {
	Hub      *Hub
	Registry *room.Registry
	Lobbies  *waiting.Manager
	Timers   *TimerRelay
	Log      *logrus.Logger
}

func NewSocketServer(reg *room.Registry, lobbies *waiting.Manager, hub *Hub, log *logrus.Logger) *SocketServer {
	return &SocketServer{
		Hub:      hub,
		Registry: reg,
		Lobbies:  lobbies,
		Timers:   NewTimerRelay(hub),
		Log:      log,
	}
}

// HandleWS upgrades the connection and runs the read loop until the client
// goes away. Each socket gets its own write pump; all room state changes
// triggered by the socket's messages run on the read goroutine.
func (srv *SocketServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"rubik"},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		srv.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "rubik" {
		c.Close(BadSubprotocolError, "client must speak the rubik subprotocol")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &Socket{
		ID:      uuid.NewString(),
		OutChan: make(chan []byte, 32),
		Cancel:  cancel,
	}
	srv.Hub.Register(s)
	middleware.LogWebSocketConnect(srv.Log, remoteAddr, r.URL.Path)

	go srv.writePump(ctx, c, s)
	err = srv.readPump(ctx, c, s)

	// ---- Cleanup after readPump exits ----
	srv.Hub.Unregister(s)
	srv.dropMemberships(s)
	middleware.LogWebSocketDisconnect(srv.Log, remoteAddr, r.URL.Path, err)
}

// dropMemberships removes the socket's user from whatever room or lobby the
// socket was bound to when the connection died.
func (srv *SocketServer) dropMemberships(s *Socket) {
	userID, _ := s.identity()
	roomID, lobbyID := s.bindings()
	if userID == "" {
		return
	}
	if roomID != "" {
		srv.Timers.Stop(roomID, userID)
		srv.Registry.Disconnect(roomID, userID)
	}
	if lobbyID != "" {
		srv.Lobbies.Disconnect(lobbyID, userID)
	}
}

func (srv *SocketServer) readPump(ctx context.Context, c *websocket.Conn, s *Socket) error {
	limiter := rate.NewLimiter(rate.Every(time.Millisecond*100), 10)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				return nil
			}
			if strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			srv.Log.Warnf("socket %s: ignoring non-text message type %d", s.ID, typ)
			continue
		}

		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			srv.Log.Warnf("socket %s: invalid json: %v", s.ID, err)
			continue
		}
		srv.dispatch(s, env)
	}
}

func (srv *SocketServer) writePump(ctx context.Context, c *websocket.Conn, s *Socket) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.OutChan:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				srv.Log.Warnf("socket %s: write failed: %v", s.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				srv.Log.Warnf("socket %s: ping failed, assuming disconnect: %v", s.ID, err)
				return
			}
		}
	}
}
