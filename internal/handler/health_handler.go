// Package handler contains the HTTP request handlers, one type per resource.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/wyckoff-journal/internal/service"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	dispatcher *service.Dispatcher
}

// NewHealthHandler creates a new HealthHandler.
// In Go, constructors are just regular functions prefixed with "New".
func NewHealthHandler(dispatcher *service.Dispatcher) *HealthHandler {
	return &HealthHandler{dispatcher: dispatcher}
}

// Healthz responds with service status and the dispatcher state.
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "wyckoff-journal",
		"state":   h.dispatcher.State().String(),
	})
}
