// internal/handlers/stringee.go
package handlers

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// handleStringeeToken mints a short-lived Stringee client token so the video
// call widget can authenticate. Claims and the cty header follow the
// Stringee REST API token format.
func (srv *SocketServer) handleStringeeToken(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing userId")
		return
	}

	sid := os.Getenv("STRINGEE_KEY_SID")
	key := os.Getenv("STRINGEE_KEY_SECRET")
	if sid == "" || key == "" {
		srv.Log.Error("stringee credentials not configured")
		writeError(w, http.StatusInternalServerError, "token service unavailable")
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"jti":      fmt.Sprintf("%s-%d", sid, now.UnixMilli()),
		"iss":      sid,
		"exp":      now.Add(time.Hour).Unix(),
		"userId":   userID,
		"rest_api": true,
	})
	token.Header["cty"] = "stringee-api;v=1"

	signed, err := token.SignedString([]byte(key))
	if err != nil {
		srv.Log.Errorf("stringee token signing failed: %v", err)
		writeError(w, http.StatusInternalServerError, "token signing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": signed})
}
