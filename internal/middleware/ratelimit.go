package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window counter in Redis shared by every API
// instance.
type RateLimiter struct {
	redis  *redis.Client
	prefix string
	limit  int
	window time.Duration
	logger *zap.Logger
}

func NewRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{redis: rdb, prefix: prefix, limit: limit, window: window, logger: logger}
}

// ByKey limits requests grouped by keyFunc. When Redis is unreachable
// the request is let through and the failure logged.
func (r *RateLimiter) ByKey(keyFunc func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("%s:%s", r.prefix, keyFunc(c))

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			r.logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			r.redis.Expire(ctx, key, r.window)
		}
		if count > int64(r.limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// ByIP is ByKey keyed on the client address.
func (r *RateLimiter) ByIP() gin.HandlerFunc {
	return r.ByKey(func(c *gin.Context) string { return c.ClientIP() })
}
