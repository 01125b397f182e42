package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"memorial-site/internal/core/auth"
	"memorial-site/internal/core/server"
	mdw "memorial-site/internal/transport/http/middleware"
)

func NewAdminEngine(d Deps) *gin.Engine {
	r := server.NewEngine(d.CORSOrigins)
	common(r, d.Log)

	// 健康检查
	r.GET("/health", d.health().Handle)

	// 管理端 v1（统一要求 admin 角色）
	admin := r.Group("/admin/v1")
	admin.Use(
		mdw.MaxBodyBytes(16<<20),
		mdw.Timeout(10*time.Second),
		mdw.AuthJWT(d.JWT, auth.RoleAdmin),
	)
	d.registry().MountAdmin(admin)

	return r
}
