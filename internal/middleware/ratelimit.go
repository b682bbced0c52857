package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"crm-gateway-go/pkg/log"
)

const rateLimitKeyPrefix = "crmgw:ratelimit:"

type rateLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	now    func() time.Time
}

// RateLimit 按客户端 IP 做固定窗口限流。rdb 为 nil 或 limit <= 0 时直接放行；
// Redis 不可用时记录日志后放行，不影响业务请求。
func RateLimit(rdb redis.Cmdable, limit int64, window time.Duration) gin.HandlerFunc {
	if rdb == nil || limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	rl := &rateLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
	return rl.handle
}

func (rl *rateLimiter) key(clientIP string) string {
	bucket := rl.now().Unix() / int64(rl.window.Seconds())
	return fmt.Sprintf("%s%s:%d", rateLimitKeyPrefix, clientIP, bucket)
}

func (rl *rateLimiter) allow(ctx context.Context, clientIP string) (bool, error) {
	key := rl.key(clientIP)
	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := rl.rdb.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= rl.limit, nil
}

func (rl *rateLimiter) handle(c *gin.Context) {
	ok, err := rl.allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		log.Warnw("限流检查失败，放行请求", "clientIP", c.ClientIP(), "error", err)
		c.Next()
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":    "Too many requests",
			"details":  fmt.Sprintf("limit is %d requests per %s", rl.limit, rl.window),
			"category": "rate_limited",
		})
		return
	}
	c.Next()
}
