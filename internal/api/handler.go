package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"campus-gate-backend/internal/analytics"
	"campus-gate-backend/internal/broadcast"
	"campus-gate-backend/internal/occupancy"
	"campus-gate-backend/internal/store"
)

const defaultKeepAlive = 25 * time.Second

// Deps are the components the handlers are built from.
type Deps struct {
	Store     store.Store
	Manager   *occupancy.Manager
	Analytics *analytics.Engine
	Hub       *broadcast.Hub
	WebPush   *webpush.Options
	// KeepAlive is the idle interval after which event streams send a
	// comment line.
	KeepAlive time.Duration
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	manager   *occupancy.Manager
	analytics *analytics.Engine
	hub       *broadcast.Hub
	webpush   *webpush.Options
	keepAlive time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.KeepAlive <= 0 {
		d.KeepAlive = defaultKeepAlive
	}
	return &Handler{
		store:     d.Store,
		manager:   d.Manager,
		analytics: d.Analytics,
		hub:       d.Hub,
		webpush:   d.WebPush,
		keepAlive: d.KeepAlive,
	}
}
