package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetSessions handles GET /api/sessions: recent parking sessions, newest
// first.
func (h *Handler) GetSessions(c *gin.Context) {
	sessions, err := h.store.RecentSessions(c.Request.Context(), queryLimit(c, 20))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

// GetUsers handles GET /api/users: registered users, newest first.
func (h *Handler) GetUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context(), queryLimit(c, 20))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dataCount": len(users), "data": users})
}
