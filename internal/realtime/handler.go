package realtime

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/koinonia/backend/internal/logging"
)

// Handler upgrades HTTP requests to websocket connections and keeps them
// registered for the lifetime of the socket.
type Handler struct {
	Registry *Registry

	upgrader websocket.Upgrader
}

// NewHandler constructs a websocket handler feeding the provided registry.
func NewHandler(registry *Registry) *Handler {
	return &Handler{
		Registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Serve handles GET /api/v1/ws?user=<id>.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		http.Error(w, "user query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err, "userId", userID)
		return
	}

	h.Registry.Add(userID, conn)
	logger.Info("websocket connected", "userId", userID)

	defer func() {
		h.Registry.Remove(userID, conn)
		_ = conn.Close()
		logger.Info("websocket disconnected", "userId", userID)
	}()

	// The socket is push-only; drain inbound frames until the peer goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
