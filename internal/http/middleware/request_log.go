package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zerochrono/copilot-backend/internal/platform/ctxutil"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

// RequestLogger writes one access log line per request. Paths in quiet are
// logged at debug unless they fail.
func RequestLogger(log *logger.Logger, quiet ...string) gin.HandlerFunc {
	quietPaths := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		quietPaths[p] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		fields = append(fields, ctxutil.LogFields(c.Request.Context())...)
		if n := c.Writer.Size(); n > 0 {
			fields = append(fields, "bytes", n)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		case quietPaths[path]:
			log.Debug("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}
