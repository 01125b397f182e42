// Package service 业务编排：校验、鉴权判断、调用仓储与媒体存储
package service

import (
	"strings"
	"time"

	"memorial-site/internal/domain"
)

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return p
}

// normPage page 从 1 开始；limit 超过上限时截断
func normPage(page, limit, def, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	return page, min(limit, maxLimit)
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate 接受 RFC3339 与纯日期
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// fieldErrors 收集字段级错误，最后统一转成 Validation
type fieldErrors []string

func (f *fieldErrors) add(msg string) { *f = append(*f, msg) }

func (f fieldErrors) err(msg string) error {
	if len(f) == 0 {
		return nil
	}
	return domain.Validation(msg, f...)
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
