package api

import (
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/mw"
	"campus-gate-backend/internal/occupancy"
	"campus-gate-backend/internal/store"
)

const maxPlatformLen = 32

// fail writes err in the failure envelope.
func fail(c *gin.Context, err error) {
	mw.Abort(c, err)
}

// readError maps a store read failure onto an error kind.
func readError(op string, err error) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("not found")
	default:
		log.Printf("%s failed: %v", op, err)
		return apperr.Unavailable(op, err)
	}
}

// bindJSON decodes the request body into dst. Unknown fields are rejected
// by the decoder configured in NewRouter.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || c.Request.Body == nil {
		return apperr.InvalidInput("request body required", nil)
	}
	msg := err.Error()
	if name, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		return apperr.InvalidInput("unknown field", map[string]string{strings.Trim(name, `"`): "unknown field"})
	}
	return apperr.InvalidInput("malformed request body", nil)
}

// actorOf builds the occupancy actor of a request authenticated by mw.Auth.
func actorOf(c *gin.Context) occupancy.Actor {
	id, _ := mw.Identity(c)
	platform := strings.ToLower(strings.TrimSpace(c.GetHeader("X-Platform")))
	if len(platform) > maxPlatformLen {
		platform = platform[:maxPlatformLen]
	}
	return occupancy.Actor{
		Identity:  id,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Platform:  platform,
	}
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, fields map[string]string) int {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		fields[name] = "must be a non-negative integer"
		return 0
	}
	return n
}

// queryTime parses an optional RFC 3339 timestamp or YYYY-MM-DD date. A date
// means the start of that day in UTC, or its end when endOfDay is set.
func queryTime(c *gin.Context, name string, endOfDay bool, fields map[string]string) *time.Time {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t
	}
	fields[name] = "must be an RFC 3339 timestamp or YYYY-MM-DD date"
	return nil
}

func paging(c *gin.Context, fields map[string]string) store.Paging {
	return store.Paging{
		Page:     queryInt(c, "page", fields),
		PageSize: queryInt(c, "limit", fields),
	}.Normalize()
}
