package handler

import (
	"mime/multipart"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"memorial-site/internal/core/media"
	"memorial-site/internal/transport/http/ez"
)

const errUnexpectedFile = "意外的文件字段"

// multipartData 已解析的表单；按白名单取值，多余字段直接拒绝
type multipartData struct {
	values map[string][]string
	files  map[string][]*multipart.FileHeader
}

func (m *multipartData) value(key string) string {
	if vs := m.values[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// checkValues 出现白名单外的文本字段时报错
func (m *multipartData) checkValues(allowed ...string) error {
	for k := range m.values {
		if !slices.Contains(allowed, k) {
			return ez.BadRequest("数据验证失败", "unexpected field: "+k)
		}
	}
	return nil
}

// singleFiles 每个文件字段至多一个且必须在白名单内
func (m *multipartData) singleFiles(allowed ...string) (map[string]media.Upload, error) {
	out := make(map[string]media.Upload, len(m.files))
	for k, fhs := range m.files {
		if !slices.Contains(allowed, k) || len(fhs) > 1 {
			return nil, ez.BadRequest(errUnexpectedFile)
		}
		if len(fhs) == 1 {
			out[k] = media.FromFileHeader(fhs[0])
		}
	}
	return out, nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

func multipartForm(c *gin.Context) (*multipartData, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, formError(err)
	}
	return &multipartData{values: form.Value, files: form.File}, nil
}
