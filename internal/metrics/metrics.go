package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal 按路由模板、方法和状态码统计请求数
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration 按路由模板和方法统计请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warbler_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// SocialActionsTotal 已提交的社交操作次数
	SocialActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_social_actions_total",
		Help: "Total number of committed social actions",
	}, []string{"action"})
)

const (
	ActionSignup        = "signup"
	ActionProfileUpdate = "profile_update"
	ActionUserDelete    = "user_delete"
	ActionFollow        = "follow"
	ActionUnfollow      = "unfollow"
	ActionPost          = "post"
	ActionMessageDelete = "message_delete"
	ActionLike          = "like"
	ActionUnlike        = "unlike"
)

// RecordAction 社交操作计数加一
func RecordAction(action string) {
	SocialActionsTotal.WithLabelValues(action).Inc()
}

// Middleware 记录请求数和耗时，未匹配的路由统一记为 unmatched
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露默认 registry
func Handler() http.Handler {
	return promhttp.Handler()
}
