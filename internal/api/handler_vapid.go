package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/broadcast"
)

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		fail(c, &apperr.Error{Kind: apperr.KindStoreUnavailable, Message: "push notifications are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "publicKey": h.webpush.VAPIDPublicKey})
}

// Healthz reports whether the database answers.
func (h *Handler) Healthz(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": h.hub.SubscriberCount(broadcast.Global)})
}
