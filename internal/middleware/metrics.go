package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crm-gateway-go/pkg/metrics"
)

// Metrics 记录每个请求的计数和耗时，路由标签使用注册时的路由模板。
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
