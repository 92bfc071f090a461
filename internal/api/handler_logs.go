package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/model"
	"campus-gate-backend/internal/parse"
	"campus-gate-backend/internal/store"
)

// ListLogs handles GET /api/logs.
func (h *Handler) ListLogs(c *gin.Context) {
	fields := make(map[string]string)
	f := store.LogFilter{
		Plate:    parse.NormalizePlate(c.Query("vehicleNumber")),
		RecordID: strings.TrimSpace(c.Query("recordId")),
		Action:   model.LogAction(strings.ToLower(c.Query("action"))),
		Gate:     strings.ToUpper(strings.TrimSpace(c.Query("gateName"))),
		ActorID:  strings.TrimSpace(c.Query("actorId")),
		From:     queryTime(c, "startDate", false, fields),
		To:       queryTime(c, "endDate", true, fields),
		Paging:   paging(c, fields),
	}
	if f.Action != "" && !f.Action.Valid() {
		fields["action"] = "must be one of: entry, exit, updated, deleted"
	}
	if len(fields) > 0 {
		fail(c, apperr.InvalidInput("invalid query", fields))
		return
	}

	page, err := h.store.ListLogs(c.Request.Context(), f)
	if err != nil {
		fail(c, readError("list logs", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"logs":     page.Logs,
		"total":    page.Total,
		"page":     page.Page,
		"pageSize": page.PageSize,
	})
}

// PlateHistory handles GET /api/logs/history/:plate.
func (h *Handler) PlateHistory(c *gin.Context) {
	plate := parse.NormalizePlate(c.Param("plate"))
	if plate == "" {
		fail(c, apperr.InvalidInput("invalid plate", map[string]string{"plate": "required"}))
		return
	}

	history, err := h.store.PlateHistory(c.Request.Context(), plate)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, apperr.NotFound("no records for "+plate))
		return
	}
	if err != nil {
		fail(c, readError("plate history", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": history})
}
