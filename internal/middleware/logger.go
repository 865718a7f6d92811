package middleware

import (
	"net/http"
	"time"

	"equiplend/internal/pkg/logger"
	"equiplend/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequestLogger attaches request fields to the context logger and writes one
// line per request once the handler chain has finished.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := log.WithFields(c.Request.Context(), map[string]any{
			"request_id": RequestIDFrom(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if userID := c.GetInt64(ctxUserID); userID > 0 {
			ctx = log.WithUserID(ctx, userID)
		}
		ctx = log.WithFields(ctx, map[string]any{
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			var err error
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
			log.Error(ctx, "request failed", err)
		case status >= http.StatusBadRequest:
			log.Warn(ctx, "request rejected")
		default:
			log.Info(ctx, "request completed")
		}
	}
}

// ErrorLogger recovers from panics and logs handler errors recorded with
// c.Error.
func ErrorLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Panic(c.Request.Context(), recovered)
				if !c.Writer.Written() {
					response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				}
				c.Abort()
				return
			}

			for _, err := range c.Errors {
				log.Error(c.Request.Context(), "handler error", err.Err)
			}
		}()

		c.Next()
	}
}
