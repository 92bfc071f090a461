package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"golang.org/x/time/rate"

	"campus-gate-backend/config"
	"campus-gate-backend/internal/auth"
	"campus-gate-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, verifier auth.Verifier, cfg config.ServerConfig) *gin.Engine {
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.Default()
	if cfg.RequestIPHeader != "" {
		r.TrustedPlatform = cfg.RequestIPHeader
	}

	rateLimiter := mw.RateLimiter(mw.NewKeyedRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute))

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	responses := mw.NewResponseCache(ttl)

	r.GET("/healthz", h.Healthz)

	// API group
	api := r.Group("/api")
	{
		// The hub checks the credential itself, so the stream is not
		// behind Auth. Browsers pass the token as a query parameter.
		api.GET("/events", rateLimiter, h.StreamEvents)
		api.GET("/vapid_public_key", rateLimiter, h.GetVAPIDPublicKey)
	}

	authed := api.Group("", mw.Auth(verifier), rateLimiter)
	{
		// The manager authorizes transitions itself.
		writes := authed.Group("", responses.Invalidate())
		writes.POST("/vehicles/checkin", h.CheckIn)
		writes.POST("/vehicles/:id/checkout", h.CheckOut)
		writes.PUT("/vehicles/:id", h.UpdateVehicle)
		writes.DELETE("/vehicles/:id", h.DeleteVehicle)

		authed.GET("/analytics/realtime", h.RealtimeStats)

		authed.GET("/subscriptions", h.GetSubscription)
		authed.PUT("/subscriptions", h.PutSubscription)
		authed.DELETE("/subscriptions", h.DeleteSubscription)
	}

	staff := authed.Group("", mw.RequireRoles(auth.RoleGuard, auth.RoleAdmin))
	{
		staff.GET("/vehicles", h.ListVehicles)
		staff.GET("/vehicles/:id", h.GetVehicle)

		staff.GET("/logs", h.ListLogs)
		staff.GET("/logs/history/:plate", h.PlateHistory)

		staff.GET("/analytics/parking", responses.Handler(), h.ParkingAnalytics)
		staff.GET("/analytics/alerts", h.SecurityAlerts)
	}

	return r
}
