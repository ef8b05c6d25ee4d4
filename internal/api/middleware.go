package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"engagement-service/internal/logging"
)

// RequestLoggingMiddleware logs one line per request; server errors at error level,
// client errors at warn level.
func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= http.StatusInternalServerError:
			logger.Errorf("Request: %s %s from %s, Status: %d, Latency: %v", c.Request.Method, path, c.ClientIP(), status, latency)
		case status >= http.StatusBadRequest:
			logger.Warnf("Request: %s %s from %s, Status: %d, Latency: %v", c.Request.Method, path, c.ClientIP(), status, latency)
		default:
			logger.Infof("Request: %s %s, Status: %d, Latency: %v", c.Request.Method, path, status, latency)
		}
	}
}
