package api

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"campus-gate-backend/internal/broadcast"
	"campus-gate-backend/internal/mw"
)

// StreamEvents handles GET /api/events. It subscribes the caller to a
// topic and forwards its events as server-sent events until the client goes
// away or the hub shuts down.
func (h *Handler) StreamEvents(c *gin.Context) {
	topic, err := broadcast.ParseTopic(c.Query("topic"))
	if err != nil {
		fail(c, err)
		return
	}
	sub, err := h.hub.Subscribe(topic, mw.BearerToken(c))
	if err != nil {
		fail(c, err)
		return
	}
	defer func() {
		h.hub.Unsubscribe(sub)
		if n := sub.Dropped(); n > 0 {
			log.Printf("subscriber %s on %s dropped %d events", sub.Identity().ID, topic, n)
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"topic": topic})
	c.Writer.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			return true
		}
	})
}
