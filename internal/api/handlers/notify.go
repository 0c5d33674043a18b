package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"notify-service/internal/dispatch"
	"notify-service/pkg/response"
)

// NotifyHandler lets internal services push a notification over HTTP as an
// alternative to publishing on the Kafka topic.
type NotifyHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewNotifyHandler(dispatcher *dispatch.Dispatcher) *NotifyHandler {
	return &NotifyHandler{dispatcher: dispatcher}
}

type notifyRequest struct {
	UserID  string          `json:"userId" binding:"required"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type notifyFrame struct {
	Type      string          `json:"type"`
	Event     string          `json:"event,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Notify handles POST /api/v1/notifications. The delivery report is
// returned as-is; zero delivered just means the user is offline.
func (h *NotifyHandler) Notify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "userId is required")
		return
	}

	data, err := json.Marshal(notifyFrame{
		Type:      "notification",
		Event:     req.Event,
		Payload:   req.Payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "internal server error")
		return
	}

	report := h.dispatcher.Dispatch(c.Request.Context(), req.UserID, data)
	response.OK(c, report)
}
