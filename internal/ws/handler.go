// Package ws owns the upgrade endpoint and the per-connection transport.
// The flow is strict: the credential is verified first, then the upgrade
// headers are negotiated, and only an authenticated, validated attempt is
// promoted to an open connection and handed to the registry.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"notify-service/internal/auth"
	"notify-service/internal/handshake"
	"notify-service/internal/presence"
	"notify-service/internal/registry"
	"notify-service/pkg/response"
)

// welcomeFrame is the first frame on every new connection, sent before any
// other traffic.
type welcomeFrame struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

type Handler struct {
	verifier auth.Verifier
	registry *registry.Registry
	presence presence.Tracker
	upgrader websocket.Upgrader
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHandler(
	verifier auth.Verifier,
	reg *registry.Registry,
	tracker presence.Tracker,
	timeout time.Duration,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = presence.Noop{}
	}

	return &Handler{
		verifier: verifier,
		registry: reg,
		presence: tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers reach this endpoint cross-origin; access
				// control is the bearer token, not the Origin header.
				return true
			},
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Serve handles GET /api/v1/ws?token=<bearer>. The credential arrives as a
// query parameter because browser WebSocket clients cannot set headers.
func (h *Handler) Serve(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	identity, err := h.verifier.Verify(ctx, c.Query("token"))
	if err != nil {
		// Missing and invalid credentials are logged apart but answered
		// identically.
		h.logger.Warn("websocket auth rejected", "error", err, "remote", c.ClientIP())
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	neg := handshake.New(h.timeout)
	if _, err := neg.Negotiate(c.Request.Header); err != nil {
		h.logger.Warn("handshake rejected",
			"userID", identity.UserID, "error", err, "remote", c.ClientIP())
		response.Error(c, http.StatusBadRequest, "bad handshake")
		return
	}

	// Headers are already validated, so the upgrader recomputes the same
	// accept value the negotiation did; a failure past this point is a
	// hijack or I/O problem, not a client protocol error.
	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "userID", identity.UserID, "error", err)
		if !c.Writer.Written() {
			response.Error(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	conn := newConn(identity, sock, h.cleanup, h.logger)

	if err := h.registry.Add(identity.UserID, conn); err != nil {
		h.logger.Error("registry insert failed",
			"userID", identity.UserID, "connID", conn.ID(), "error", err)
		sock.Close()
		return
	}

	if err := h.presence.SetOnline(context.Background(), identity.UserID); err != nil {
		h.logger.Warn("presence update failed", "userID", identity.UserID, "error", err)
	}

	welcome, err := json.Marshal(welcomeFrame{
		Type:      "connected",
		UserID:    identity.UserID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil {
		// Queued before the pumps start, so it is the first frame out.
		conn.Send(welcome)
	}

	conn.run()

	h.logger.Info("websocket connected",
		"userID", identity.UserID, "connID", conn.ID(), "remote", c.ClientIP())
}

// cleanup runs once per connection, on whatever path closed it. Remove
// tolerates double-invocation, so racing with an explicit registry removal
// (e.g. the dispatcher dropping a dead connection) is harmless.
func (h *Handler) cleanup(conn *Conn) {
	userID := conn.Identity().UserID
	h.registry.Remove(userID, conn)

	if len(h.registry.ListFor(userID)) == 0 {
		if err := h.presence.SetOffline(context.Background(), userID); err != nil {
			h.logger.Warn("presence update failed", "userID", userID, "error", err)
		}
	}
}
