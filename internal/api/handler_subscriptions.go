package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/model"
	"campus-gate-backend/internal/mw"
	"campus-gate-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// PutSubscription creates or replaces the caller's browser subscription.
// Owners are notified through it when their vehicle enters or exits.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	fields := make(map[string]string)
	if req.Endpoint == "" {
		fields["endpoint"] = "required"
	}
	if req.P256DH == "" {
		fields["p256dh"] = "required"
	}
	if req.Auth == "" {
		fields["auth"] = "required"
	}
	if len(fields) > 0 {
		fail(c, apperr.InvalidInput("invalid subscription", fields))
		return
	}

	id, _ := mw.Identity(c)
	sub := model.PushSubscription{
		Endpoint:   req.Endpoint,
		P256DH:     req.P256DH,
		Auth:       req.Auth,
		IdentityID: id.ID,
	}
	if err := h.store.SavePushSubscription(c.Request.Context(), &sub); err != nil {
		fail(c, readError("save subscription", err))
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
}

// DeleteSubscription removes one of the caller's subscriptions.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	if req.Endpoint == "" {
		fail(c, apperr.InvalidInput("invalid subscription", map[string]string{"endpoint": "required"}))
		return
	}

	id, _ := mw.Identity(c)
	err := h.store.DeletePushSubscription(c.Request.Context(), req.Endpoint, id.ID)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, apperr.NotFound("subscription not found"))
		return
	}
	if err != nil {
		fail(c, readError("delete subscription", err))
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam returns a query value without URL decoding, since push
// endpoints are compared byte for byte with what the browser registered.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription reports whether the endpoint is registered to the caller.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		fail(c, apperr.InvalidInput("endpoint is required", map[string]string{"endpoint": "required"}))
		return
	}

	id, _ := mw.Identity(c)
	sub, err := h.store.GetPushSubscription(c.Request.Context(), raw)
	if errors.Is(err, store.ErrNotFound) || (err == nil && sub.IdentityID != id.ID) {
		fail(c, apperr.NotFound("subscription not found"))
		return
	}
	if err != nil {
		fail(c, readError("get subscription", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": gin.H{
		"endpoint":  sub.Endpoint,
		"createdAt": sub.CreatedAt,
	}})
}
