package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"parking-gate-backend/internal/dispatch"
)

// maxEventBody caps an inbound event payload.
const maxEventBody = 64 << 10

// IngestEvent handles POST /api/events: one inbound event from the gate
// controller or an observer, handed to the dispatcher.
func (h *Handler) IngestEvent(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read body"})
		return
	}

	if err := h.dispatcher.Handle(c.Request.Context(), raw); err != nil {
		if errors.Is(err, dispatch.ErrNoActuator) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid event payload"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true})
}
