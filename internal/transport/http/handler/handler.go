// Package handler 各业务模块的 HTTP 动作；每个模块实现 MountAPI / MountAdmin
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"memorial-site/internal/transport/http/ez"
)

// JSON 接口统一的请求体上限与超时
const (
	jsonBodyLimit = 16 << 20
	jsonTimeout   = 10 * time.Second
)

type Message struct {
	Message string `json:"message"`
}

type pageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func uid(c *gin.Context) string { return c.GetString(ez.KeyUserID) }

// formError multipart 解析失败一律 400；超限时保留 payload too large
func formError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return ez.UploadTooLarge()
	}
	return ez.BadRequest("请求格式错误", err.Error())
}
