package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"parking-gate-backend/config"
	"parking-gate-backend/internal/dispatch"
	"parking-gate-backend/internal/gateway"
	"parking-gate-backend/internal/state"
	"parking-gate-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	state      *state.Store
	dispatcher *dispatch.Dispatcher
	hub        *gateway.Hub
	webpush    *webpush.Options
	cfg        *config.Config
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, st *state.Store, d *dispatch.Dispatcher, hub *gateway.Hub, webpushOptions *webpush.Options, cfg *config.Config) *Handler {
	return &Handler{
		store:      s,
		state:      st,
		dispatcher: d,
		hub:        hub,
		webpush:    webpushOptions,
		cfg:        cfg,
	}
}
