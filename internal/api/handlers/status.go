package handlers

import (
	"github.com/gin-gonic/gin"

	"notify-service/internal/registry"
	"notify-service/pkg/response"
)

// StatusHandler exposes registry counts for operators.
type StatusHandler struct {
	registry *registry.Registry
}

func NewStatusHandler(reg *registry.Registry) *StatusHandler {
	return &StatusHandler{registry: reg}
}

type statusBody struct {
	Identities  int `json:"identities"`
	Connections int `json:"connections"`
}

// Status handles GET /api/v1/status.
func (h *StatusHandler) Status(c *gin.Context) {
	identities, connections := h.registry.Counts()
	response.OK(c, statusBody{Identities: identities, Connections: connections})
}
