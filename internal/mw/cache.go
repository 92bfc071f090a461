package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// recordingWriter tees the response body into buf.
type recordingWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache keeps successful GET responses in memory for a fixed TTL.
// Entries are partitioned by the caller's role, so the middleware must run
// after Auth.
type ResponseCache struct {
	entries *cache.Cache
	ttl     time.Duration
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{entries: cache.New(ttl, 2*ttl), ttl: ttl}
}

// Flush drops every cached response.
func (rc *ResponseCache) Flush() {
	rc.entries.Flush()
}

// Invalidate returns middleware that flushes the cache after a request
// succeeds. It goes on routes that change what cached reads return.
func (rc *ResponseCache) Invalidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if status := c.Writer.Status(); status >= http.StatusOK && status < http.StatusMultipleChoices {
			rc.Flush()
		}
	}
}

func (rc *ResponseCache) key(c *gin.Context) string {
	role := "anonymous"
	if id, ok := Identity(c); ok {
		role = string(id.Role)
	}
	return role + "|" + c.Request.URL.RequestURI()
}

// Handler returns the caching middleware. Hits carry an X-Cache: HIT header.
func (rc *ResponseCache) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := rc.key(c)
		if v, found := rc.entries.Get(key); found {
			hit := v.(cachedResponse)
			c.Header("X-Cache", "HIT")
			c.Data(hit.status, hit.contentType, hit.body)
			c.Abort()
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if status := rec.Status(); status >= http.StatusOK && status < http.StatusMultipleChoices {
			rc.entries.Set(key, cachedResponse{
				status:      status,
				contentType: rec.Header().Get("Content-Type"),
				body:        bytes.Clone(rec.buf.Bytes()),
			}, rc.ttl)
		}
	}
}
