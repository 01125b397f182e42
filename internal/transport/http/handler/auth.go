package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"memorial-site/internal/service"
	"memorial-site/internal/transport/http/ez"
	mdw "memorial-site/internal/transport/http/middleware"
)

type Auth struct {
	svc *service.AuthService
}

func NewAuth(svc *service.AuthService) *Auth { return &Auth{svc: svc} }

func (h *Auth) Priority() int { return 10 }

type registerIn struct {
	Username string `json:"username" binding:"omitempty,max=50"`
	Email    string `json:"email"    binding:"omitempty,email,max=254"`
	Password string `json:"password" binding:"omitempty,max=128"`
}

type loginIn struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotIn struct {
	Email string `json:"email"`
}

type resetIn struct {
	Password string `json:"password" binding:"omitempty,max=128"`
}

type validOut struct {
	Valid bool `json:"valid"`
}

func (h *Auth) MountAPI(api *gin.RouterGroup) {
	g := api.Group("/auth")
	// 登录/找回密码按 IP 限速，防撞库
	g.Use(mdw.RateLimitPerIP(rate.Every(200*time.Millisecond), 20), mdw.MaxBodyBytes(jsonBodyLimit), mdw.Timeout(jsonTimeout))
	e := ez.New(g)

	ez.RegisterAction(e, ez.Action[registerIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/register",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Msg:    "注册成功",
		Handler: func(c *gin.Context, in *registerIn) (*service.AuthResult, error) {
			return h.svc.Register(c.Request.Context(), service.RegisterInput{
				Username: in.Username, Email: in.Email, Password: in.Password,
			})
		},
	})

	ez.RegisterAction(e, ez.Action[loginIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		Msg:    "登录成功",
		Handler: func(c *gin.Context, in *loginIn) (*service.AuthResult, error) {
			return h.svc.Login(c.Request.Context(), in.Email, in.Password)
		},
	})

	ez.RegisterAction(e, ez.Action[forgotIn, Message]{
		Method: http.MethodPost,
		Path:   "/forgot-password",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *forgotIn) (Message, error) {
			if err := h.svc.ForgotPassword(c.Request.Context(), in.Email); err != nil {
				return Message{}, err
			}
			return Message{Message: service.ForgotPasswordReply}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[resetIn, Message]{
		Method: http.MethodPost,
		Path:   "/reset-password/:token",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *resetIn) (Message, error) {
			if err := h.svc.ResetPassword(c.Request.Context(), c.Param("token"), in.Password); err != nil {
				return Message{}, err
			}
			return Message{Message: "密码重置成功"}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, validOut]{
		Method: http.MethodGet,
		Path:   "/verify-reset-token/:token",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (validOut, error) {
			if err := h.svc.VerifyResetToken(c.Request.Context(), c.Param("token")); err != nil {
				return validOut{}, err
			}
			return validOut{Valid: true}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.UserView]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*service.UserView, error) {
			return h.svc.Me(c.Request.Context(), uid(c))
		},
	})
}
