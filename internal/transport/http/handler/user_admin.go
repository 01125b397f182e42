package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"memorial-site/internal/service"
	"memorial-site/internal/transport/http/ez"
)

// UserAdmin 后台用户管理
type UserAdmin struct {
	svc *service.UserService
}

func NewUserAdmin(svc *service.UserService) *UserAdmin { return &UserAdmin{svc: svc} }

type userListQuery struct {
	pageQuery
	Q string `form:"q" binding:"omitempty,max=100"` // 按用户名/邮箱模糊搜
}

type banOut struct {
	ID string `json:"id"`
}

func (h *UserAdmin) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)

	// --- GET /admin/v1/users  用户列表 ---
	ez.RegisterAction(e, ez.Action[userListQuery, *service.UserPage]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *userListQuery) (*service.UserPage, error) {
			return h.svc.List(c.Request.Context(), q.Q, q.Page, q.Limit)
		},
	})

	// --- POST /admin/v1/users/:id/ban  封禁（软删） ---
	ez.RegisterAction(e, ez.Action[struct{}, banOut]{
		Method: http.MethodPost,
		Path:   "/users/:id/ban",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (banOut, error) {
			id := c.Param("id")
			if err := h.svc.Ban(c.Request.Context(), id); err != nil {
				return banOut{}, err
			}
			return banOut{ID: id}, nil
		},
	})
}
