package cache

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/artemk/menulive/internal/logger"
	"github.com/gin-gonic/gin"
)

// Header values reported through X-Cache.
const (
	resultHit    = "HIT"
	resultMiss   = "MISS"
	resultBypass = "BYPASS"
)

// Key builds the response-cache key for a request path.
// Parameters:
//   - prefix: cache key namespace.
//   - path: request path.
// Returns:
//   - string: store key.
func Key(prefix, path string) string {
	return prefix + ":" + path
}

// bodyCapture buffers the response body while still writing it through.
type bodyCapture struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache returns a middleware caching idempotent GET responses keyed
// by request path. A present, unexpired entry is served directly (HIT); a
// miss invokes the real handler and stores 2xx bodies with a TTL (MISS); a
// store failure bypasses caching entirely (BYPASS), since correctness never
// depends on the cache being up.
// Parameters:
//   - store: backing cache store.
//   - prefix: cache key namespace.
//   - ttl: entry lifetime.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func ResponseCache(store Store, prefix string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := Key(prefix, c.Request.URL.Path)

		cached, err := store.Get(ctx, key)
		if err == nil {
			c.Header("X-Cache", resultHit)
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}
		if !errors.Is(err, ErrNotFound) {
			logger.CtxWarn(ctx, "Response cache unavailable, bypassing: %v", err)
			c.Header("X-Cache", resultBypass)
			c.Next()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = capture
		c.Header("X-Cache", resultMiss)

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		if err := store.Set(ctx, key, capture.body.Bytes(), ttl); err != nil {
			logger.CtxWarn(ctx, "Failed to store response cache entry: %v", err)
		}
	}
}
