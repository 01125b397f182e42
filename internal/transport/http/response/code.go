package response

import "net/http"

// 业务码直接沿用 HTTP 语义，0 表示成功
const (
	CodeOK              = 0
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeTooLarge        = 413
	CodeTooManyRequests = 429
	CodeServerError     = 500
	CodeUnavailable     = 503
	CodeTimeout         = 504
)

// CodeMsgMap 用于集中管理 code - msg
var CodeMsgMap = map[int]string{
	CodeOK:              "OK",
	CodeBadRequest:      "Bad Request",
	CodeUnauthorized:    "Unauthorized",
	CodeForbidden:       "Forbidden",
	CodeNotFound:        "Not Found",
	CodeTooLarge:        "payload too large",
	CodeTooManyRequests: "too many requests",
	CodeServerError:     "internal server error",
	CodeUnavailable:     "Service Unavailable",
	CodeTimeout:         "timeout",
}

// Status code → HTTP 状态码
func Status(code int) int {
	if code == CodeOK {
		return http.StatusOK
	}
	if code < 100 || code > 599 {
		return http.StatusInternalServerError
	}
	return code
}
