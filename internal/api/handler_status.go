package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetStatus handles GET /api/status: the live snapshot plus connected client
// counts.
func (h *Handler) GetStatus(c *gin.Context) {
	snap := h.state.Get()
	actuators := 0
	if h.hub.ActuatorConnected() {
		actuators = 1
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snap,
		"connectedClients": gin.H{
			"total":     h.hub.ObserverCount() + actuators,
			"actuator":  actuators,
			"observers": h.hub.ObserverCount(),
		},
	})
}

// GetEvents handles GET /api/events: the most recent entries of the event
// log, newest first.
func (h *Handler) GetEvents(c *gin.Context) {
	limit := queryLimit(c, 20)
	events := h.state.Get().RecentEvents
	if len(events) > limit {
		events = events[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
}

func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > 100 {
		return 100
	}
	return limit
}
