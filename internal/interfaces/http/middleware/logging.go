// Package middleware holds the cross-cutting gin middleware: request
// logging, CORS, and per-client rate limiting.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
)

// RequestLogging logs one line per request with method, path, status,
// and latency. Health and metrics probes are skipped to keep the log
// readable.
func RequestLogging(logger logging.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", status),
			logging.Duration("latency", time.Since(start)),
			logging.Int("bytes", c.Writer.Size()),
			logging.String("client_ip", c.ClientIP()),
		}

		switch {
		case status >= 500:
			fields = append(fields, logging.String("errors", c.Errors.String()))
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
