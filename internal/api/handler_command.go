package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type commandRequest struct {
	Command string         `json:"command" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// SendCommand handles POST /api/command: an observer-issued command forwarded
// to the actuator. Delivery failure is surfaced synchronously, never retried.
func (h *Handler) SendCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	msg := map[string]any{"command": req.Command}
	for k, v := range req.Payload {
		msg[k] = v
	}
	if !h.hub.SendToActuator(msg) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "No actuator client connected"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Command '" + req.Command + "' sent to actuator"})
}
