package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"parking-gate-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(h.cfg.Server.RateLimitPerSec), h.cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(h.cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	authed := mw.RequireAuth(h.cfg.Auth.JWTSecret)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// inbound events from the gate controller (and observer passthrough)
		api.POST("/events", h.IngestEvent)

		// live channels
		api.GET("/stream", h.ObserverStream)
		api.GET("/actuator/stream", h.ActuatorStream)

		api.GET("/status", h.GetStatus)
		api.GET("/events", h.GetEvents)
		api.POST("/command", h.SendCommand)

		api.GET("/sessions", authed, caching, h.GetSessions)
		api.GET("/users", authed, caching, h.GetUsers)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", authed, h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	users := r.Group("/users")
	users.Use(rateLimiter)
	{
		users.POST("/sign-up", h.Register)
		users.POST("/login", h.Login)
	}

	return r
}
