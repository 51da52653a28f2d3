// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the socket handler. These provide
// more specific reasons for closure than standard codes.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client connected with an unsupported subprotocol.
	RoomClosedError     websocket.StatusCode = 3001 // The room the socket belonged to was torn down.
)
