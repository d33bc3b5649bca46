package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"commentflow/internal/broadcast"
)

// Handler upgrades HTTP requests to websocket subscriber connections.
// Connections are anonymous by default; a valid access token on the
// handshake attaches the user identity.
type Handler struct {
	hub       *broadcast.Hub
	jwtSecret string
	upgrader  websocket.Upgrader
}

// NewHandler creates a websocket handler. allowedOrigins restricts the
// Origin header during the upgrade; empty means same-host only, "*" allows
// any origin.
func NewHandler(hub *broadcast.Hub, jwtSecret string, allowedOrigins []string) *Handler {
	h := &Handler{
		hub:       hub,
		jwtSecret: jwtSecret,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Serve handles GET /ws.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := h.identify(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	client := newClient(h.hub, conn, userID)
	h.hub.Register(client)

	if userID != "" {
		log.Printf("[WS] Client connected: user=%s", userID)
	} else {
		log.Printf("[WS] Client connected: anonymous")
	}

	go client.writePump()
	go client.readPump()
}

// identify extracts the user id from a handshake token, if present. An
// invalid token degrades to an anonymous connection rather than rejecting
// the upgrade: subscribing requires no authentication.
func (h *Handler) identify(r *http.Request) string {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenString = parts[1]
		}
	}
	if tokenString == "" {
		return ""
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		log.Printf("[WS] Handshake token rejected, continuing anonymous: %v", err)
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	userID, _ := claims["user_id"].(string)
	return userID
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) == 0 {
			// Same-host default, matching the upgrader's stock behavior.
			return strings.Contains(origin, r.Host)
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
