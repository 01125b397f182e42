package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// 未命中任何路由的请求共用一个标签，避免扫描流量撑爆时间序列
const unmatchedRoute = "unmatched"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests by route template"},
		[]string{"path", "method", "status"},
	)
	requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Latency of HTTP requests by route template",
			// 上传动作可以跑到分钟级
			Buckets: append(prometheus.DefBuckets, 30, 60, 120, 300),
		}, []string{"path", "method"},
	)
)

func init() { prometheus.MustRegister(requestsTotal, requestLatency) }

// routeLabel 只用路由模板（/api/memorials/:id），不用原始 URL
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := routeLabel(c)
		requestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		requestLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
