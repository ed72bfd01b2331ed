package logging

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
)

// GinLogger returns gin middleware that logs each request through the
// shared logrus instance instead of gin's default writer.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		entry := logger.WithField("status", status).
			WithField("latency_ms", latency.Milliseconds()).
			WithField("client", c.ClientIP())

		switch {
		case status >= http.StatusInternalServerError:
			entry.Errorf("%s %s", c.Request.Method, path)
		case status >= http.StatusBadRequest:
			entry.Warnf("%s %s", c.Request.Method, path)
		default:
			entry.Debugf("%s %s", c.Request.Method, path)
		}
	}
}

// GinRecovery returns gin middleware that recovers from handler panics,
// logs the stack, and responds 500 with a generic body.
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).Errorf("handler panic: %s", debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
