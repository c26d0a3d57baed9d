package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/securesearch/securesearch/internal/logging"
)

// RequestLogger logs every completed request through logger, a
// structured-logging middleware recording method, path, status, and
// duration for each request.
func RequestLogger(logger *logging.StructuredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.LogHTTPRequest(c.Request.Context(), method, path, c.Writer.Status(), time.Since(start))
	}
}
