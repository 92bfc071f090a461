package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus-gate-backend/internal/analytics"
	"campus-gate-backend/internal/apperr"
)

// ParkingAnalytics handles GET /api/analytics/parking.
func (h *Handler) ParkingAnalytics(c *gin.Context) {
	fields := make(map[string]string)
	q := analytics.Query{GroupBy: analytics.Granularity(strings.ToLower(c.Query("groupBy")))}
	if t := queryTime(c, "startDate", false, fields); t != nil {
		q.Start = *t
	}
	if t := queryTime(c, "endDate", true, fields); t != nil {
		q.End = *t
	}
	if len(fields) > 0 {
		fail(c, apperr.InvalidInput("invalid query", fields))
		return
	}

	report, err := h.analytics.Report(c.Request.Context(), q)
	if err != nil {
		fail(c, readError("parking analytics", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": report})
}

// RealtimeStats handles GET /api/analytics/realtime.
func (h *Handler) RealtimeStats(c *gin.Context) {
	snap, err := h.analytics.Snapshot(c.Request.Context())
	if err != nil {
		fail(c, readError("realtime stats", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": snap})
}

// SecurityAlerts handles GET /api/analytics/alerts.
func (h *Handler) SecurityAlerts(c *gin.Context) {
	alerts, err := h.analytics.Alerts(c.Request.Context())
	if err != nil {
		fail(c, readError("security alerts", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alerts": alerts})
}
