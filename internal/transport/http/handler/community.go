package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"memorial-site/internal/domain"
	"memorial-site/internal/service"
	"memorial-site/internal/transport/http/ez"
	mdw "memorial-site/internal/transport/http/middleware"
)

type Community struct {
	svc *service.CommunityService
}

func NewCommunity(svc *service.CommunityService) *Community { return &Community{svc: svc} }

func (h *Community) Priority() int { return 30 }

type postListQuery struct {
	pageQuery
	Category string `form:"category"`
	Search   string `form:"search" binding:"omitempty,max=100"`
}

type hotQuery struct {
	Limit int `form:"limit"`
}

type postIn struct {
	Title    *string `json:"title"    binding:"omitempty,max=100"`
	Content  *string `json:"content"  binding:"omitempty,max=5000"`
	Category *string `json:"category"`
}

func (p postIn) input() service.PostInput {
	return service.PostInput{Title: p.Title, Content: p.Content, Category: p.Category}
}

type commentIn struct {
	Content string `json:"content"`
}

type commentCountOut struct {
	Message      string `json:"message"`
	CommentCount int64  `json:"commentCount"`
}

type pinOut struct {
	IsPinned bool `json:"isPinned"`
}

type lockOut struct {
	IsLocked bool `json:"isLocked"`
}

func (h *Community) MountAPI(api *gin.RouterGroup) {
	g := api.Group("/community")
	g.Use(mdw.MaxBodyBytes(jsonBodyLimit), mdw.Timeout(jsonTimeout))
	e := ez.New(g)

	ez.RegisterAction(e, ez.Action[postListQuery, *service.PostPage]{
		Method: http.MethodGet,
		Path:   "/posts",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *postListQuery) (*service.PostPage, error) {
			return h.svc.List(c.Request.Context(), q.Page, q.Limit, q.Category, q.Search)
		},
	})

	ez.RegisterAction(e, ez.Action[hotQuery, []domain.Post]{
		Method: http.MethodGet,
		Path:   "/posts/hot",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *hotQuery) ([]domain.Post, error) {
			return h.svc.Hot(c.Request.Context(), q.Limit)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Post]{
		Method: http.MethodGet,
		Path:   "/posts/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Post, error) {
			return h.svc.Get(c.Request.Context(), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[postIn, *domain.Post]{
		Method: http.MethodPost,
		Path:   "/posts",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *postIn) (*domain.Post, error) {
			return h.svc.Create(c.Request.Context(), uid(c), in.input())
		},
	})

	ez.RegisterAction(e, ez.Action[postIn, *domain.Post]{
		Method: http.MethodPut,
		Path:   "/posts/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *postIn) (*domain.Post, error) {
			return h.svc.Update(c.Request.Context(), uid(c), c.Param("id"), in.input())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, Message]{
		Method: http.MethodDelete,
		Path:   "/posts/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (Message, error) {
			if err := h.svc.Delete(c.Request.Context(), uid(c), c.Param("id")); err != nil {
				return Message{}, err
			}
			return Message{Message: "删除成功"}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.LikeResult]{
		Method: http.MethodPost,
		Path:   "/posts/:id/like",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*service.LikeResult, error) {
			return h.svc.ToggleLike(c.Request.Context(), uid(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[commentIn, *service.CommentResult]{
		Method: http.MethodPost,
		Path:   "/posts/:id/comments",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *commentIn) (*service.CommentResult, error) {
			return h.svc.AddComment(c.Request.Context(), uid(c), c.Param("id"), in.Content)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, commentCountOut]{
		Method: http.MethodDelete,
		Path:   "/posts/:id/comments/:commentId",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (commentCountOut, error) {
			n, err := h.svc.DeleteComment(c.Request.Context(), uid(c), c.Param("id"), c.Param("commentId"))
			if err != nil {
				return commentCountOut{}, err
			}
			return commentCountOut{Message: "删除成功", CommentCount: n}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, pinOut]{
		Method: http.MethodPut,
		Path:   "/posts/:id/pin",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (pinOut, error) {
			v, err := h.svc.TogglePin(c.Request.Context(), uid(c), c.Param("id"))
			return pinOut{IsPinned: v}, err
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, lockOut]{
		Method: http.MethodPut,
		Path:   "/posts/:id/lock",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (lockOut, error) {
			v, err := h.svc.ToggleLock(c.Request.Context(), uid(c), c.Param("id"))
			return lockOut{IsLocked: v}, err
		},
	})
}

// MountAdmin 管理员置顶/删帖，不校验作者
func (h *Community) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)

	ez.RegisterAction(e, ez.Action[struct{}, pinOut]{
		Method: http.MethodPut,
		Path:   "/posts/:id/pin",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (pinOut, error) {
			v, err := h.svc.ModeratePin(c.Request.Context(), c.Param("id"))
			return pinOut{IsPinned: v}, err
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, Message]{
		Method: http.MethodDelete,
		Path:   "/posts/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (Message, error) {
			if err := h.svc.ModerateDelete(c.Request.Context(), c.Param("id")); err != nil {
				return Message{}, err
			}
			return Message{Message: "删除成功"}, nil
		},
	})
}
