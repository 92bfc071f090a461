package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/model"
	"campus-gate-backend/internal/occupancy"
	"campus-gate-backend/internal/store"
)

// CheckIn handles POST /api/vehicles/checkin.
func (h *Handler) CheckIn(c *gin.Context) {
	var in occupancy.CheckInInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}

	rec, err := h.manager.CheckIn(c.Request.Context(), actorOf(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "record": rec})
}

// CheckOut handles POST /api/vehicles/:id/checkout. The body is optional.
func (h *Handler) CheckOut(c *gin.Context) {
	var in occupancy.CheckOutInput
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &in); err != nil {
			fail(c, err)
			return
		}
	}

	rec, err := h.manager.CheckOut(c.Request.Context(), actorOf(c), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "record": rec})
}

// UpdateVehicle handles PUT /api/vehicles/:id.
func (h *Handler) UpdateVehicle(c *gin.Context) {
	var in occupancy.UpdateInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}

	rec, err := h.manager.Update(c.Request.Context(), actorOf(c), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "record": rec})
}

// DeleteVehicle handles DELETE /api/vehicles/:id.
func (h *Handler) DeleteVehicle(c *gin.Context) {
	rec, err := h.manager.Delete(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "record": rec})
}

// GetVehicle handles GET /api/vehicles/:id.
func (h *Handler) GetVehicle(c *gin.Context) {
	rec, err := h.store.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, readError("get record", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "record": rec})
}

// ListVehicles handles GET /api/vehicles.
func (h *Handler) ListVehicles(c *gin.Context) {
	fields := make(map[string]string)
	f := store.RecordFilter{
		Status:      model.Status(strings.ToLower(c.Query("status"))),
		Class:       model.VehicleClass(strings.ToLower(c.Query("vehicleType"))),
		Gate:        strings.ToUpper(strings.TrimSpace(c.Query("gateName"))),
		OwnerRole:   model.OwnerRole(strings.ToLower(c.Query("ownerRole"))),
		EnteredFrom: queryTime(c, "startDate", false, fields),
		EnteredTo:   queryTime(c, "endDate", true, fields),
		Search:      strings.TrimSpace(c.Query("search")),
		Paging:      paging(c, fields),
	}
	if f.Status != "" && f.Status != model.StatusInside && f.Status != model.StatusExited {
		fields["status"] = "must be inside or exited"
	}
	if f.Class != "" && !f.Class.Valid() {
		fields["vehicleType"] = "unknown vehicle type"
	}
	if f.OwnerRole != "" && !f.OwnerRole.Valid() {
		fields["ownerRole"] = "unknown owner role"
	}
	if len(fields) > 0 {
		fail(c, apperr.InvalidInput("invalid query", fields))
		return
	}

	page, err := h.store.ListRecords(c.Request.Context(), f)
	if err != nil {
		fail(c, readError("list records", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"records":  page.Records,
		"total":    page.Total,
		"page":     page.Page,
		"pageSize": page.PageSize,
	})
}
