package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"equiplend/internal/pkg/logger"
	"equiplend/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// WindowLimiter is satisfied by the redis client.
type WindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit caps requests per caller in a fixed window. Authenticated
// callers are keyed by user id, others by client IP. Limiter errors fail
// open.
func RateLimit(limiter WindowLimiter, name string, limit int64, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if userID := c.GetInt64(ctxUserID); userID > 0 {
			subject = "user:" + strconv.FormatInt(userID, 10)
		}

		allowed, _, err := limiter.FixedWindowAllow(c.Request.Context(), name+":"+subject, limit, window)
		if err != nil {
			log.Error(c.Request.Context(), "rate limiter unavailable", err)
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Abort(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later")
			return
		}
		c.Next()
	}
}
