package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Check 依赖探活；返回 nil 表示正常
type Check func(ctx context.Context) error

type Health struct {
	checks map[string]Check
	log    *zap.Logger
}

func NewHealth(checks map[string]Check, l *zap.Logger) *Health {
	return &Health{checks: checks, log: l}
}

func (h *Health) Priority() int { return 0 }

type healthOut struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *Health) MountAPI(api *gin.RouterGroup) {
	api.GET("/health", h.Handle)
}

// Handle 后台引擎直接挂在根路径，不经过鉴权分组
func (h *Health) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	out := healthOut{Status: "ok", Message: "服务器运行正常"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		out.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			out.Checks[name] = "down"
			out.Status, out.Message = "degraded", "依赖服务不可用"
			status = http.StatusServiceUnavailable
			continue
		}
		out.Checks[name] = "up"
	}
	c.JSON(status, out)
}
