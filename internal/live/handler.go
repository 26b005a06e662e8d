package live

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/auth"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/typeid"
)

// Handler upgrades /ws/sessions/{sessionId} requests into viewers.
type Handler struct {
	hub            *Hub
	auth           *auth.Service
	originPatterns []string
}

func NewHandler(hub *Hub, authSvc *auth.Service, originPatterns []string) *Handler {
	return &Handler{hub: hub, auth: authSvc, originPatterns: originPatterns}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if _, ok := h.hub.sessions.Get(sessionID); !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	// Browsers cannot set headers on a websocket handshake, so the token
	// travels in the query string.
	userID, err := h.auth.Authorize(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if userID == "" {
		userID = "anon-" + uuid.New().String()[:8]
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(h.hub, conn, userID, sessionID, typeid.NewClientID())
	if err := h.hub.Register(client); err != nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
