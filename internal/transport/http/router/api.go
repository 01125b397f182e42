package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"memorial-site/internal/core/auth"
	"memorial-site/internal/core/media"
	"memorial-site/internal/core/server"
	"memorial-site/internal/service"
	"memorial-site/internal/transport/http/handler"
	mdw "memorial-site/internal/transport/http/middleware"
	resp "memorial-site/internal/transport/http/response"
)

// Deps 两个引擎共用的依赖
type Deps struct {
	Log         *zap.Logger
	JWT         *auth.JWTer
	Auth        *service.AuthService
	Memorials   *service.MemorialService
	Community   *service.CommunityService
	Users       *service.UserService
	Media       *media.Service
	Checks      map[string]handler.Check
	CORSOrigins []string
}

func (d Deps) health() *handler.Health { return handler.NewHealth(d.Checks, d.Log) }

func (d Deps) registry() *Registry {
	return NewRegistry(
		d.health(),
		handler.NewAuth(d.Auth),
		handler.NewMemorial(d.Memorials, d.Media.MaxBytes()),
		handler.NewCommunity(d.Community),
		handler.NewUserAdmin(d.Users),
	)
}

func common(r *gin.Engine, l *zap.Logger) {
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.Recovery(l),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, resp.Error(resp.CodeNotFound, ""))
	})
}

func NewAPIEngine(d Deps) *gin.Engine {
	r := server.NewEngine(d.CORSOrigins)
	common(r, d.Log)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 上传文件：/uploads/<分类>/<文件名>
	handler.NewMedia(d.Media, d.Log).Mount(r)

	// 令牌可选：具体动作通过 Auth 决定是否要求登录
	api := r.Group("/api")
	api.Use(mdw.OptionalAuth(d.JWT))
	d.registry().MountAPI(api)

	return r
}
