package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"memorial-site/internal/core/media"
	"memorial-site/internal/transport/http/ez"
)

// Media 只读地提供已上传文件，路径与存储布局一一对应
type Media struct {
	svc *media.Service
	log *zap.Logger
}

func NewMedia(svc *media.Service, l *zap.Logger) *Media { return &Media{svc: svc, log: l} }

// Mount 挂在根路由上，不带 /api 前缀
func (h *Media) Mount(r gin.IRoutes) {
	r.GET("/uploads/:category/:filename", h.serve)
	r.HEAD("/uploads/:category/:filename", h.serve)
}

func (h *Media) serve(c *gin.Context) {
	name := c.Param("filename")
	rc, info, err := h.svc.Open(c.Request.Context(), c.Param("category"), name)
	if errors.Is(err, media.ErrObjectNotFound) {
		ez.Fail(c, ez.NotFound("文件不存在"))
		return
	}
	if err != nil {
		h.log.Error("open media failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		ez.Fail(c, err)
		return
	}
	defer rc.Close()

	w := c.Writer.Header()
	w.Set("X-Content-Type-Options", "nosniff")
	w.Set("Cache-Control", "public, max-age=86400")
	if info.ContentType != "" {
		w.Set("Content-Type", info.ContentType)
	}
	http.ServeContent(c.Writer, c.Request, name, info.ModTime, rc)
}
