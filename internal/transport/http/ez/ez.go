// Package ez 一行注册一个接口：鉴权、绑定、错误映射、统一响应
package ez

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"memorial-site/internal/domain"
	resp "memorial-site/internal/transport/http/response"
)

// gin 上下文里的键，由鉴权中间件写入
const (
	KeyUserID   = "userId"
	KeyRole     = "role"
	KeyClaims   = "claims"
	KeyTokenErr = "tokenErr" // 带了令牌但校验失败
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

func (e EZ) Group() *gin.RouterGroup { return e.g }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定（未知字段直接拒绝）
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / 表单取
)

// AErr 传输层错误
type AErr struct {
	Code   int
	Msg    string
	Fields []string
	Err    error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func isAErr(err error) bool {
	var ae *AErr
	return errors.As(err, &ae)
}

func BadRequest(msg string, fields ...string) error {
	return &AErr{Code: resp.CodeBadRequest, Msg: msg, Fields: fields}
}
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func TooLarge() error               { return &AErr{Code: resp.CodeTooLarge} }

// UploadTooLarge 单个上传文件超限属于上传被拒，回 400
func UploadTooLarge() error {
	return &AErr{Code: resp.CodeBadRequest, Msg: resp.CodeMsgMap[resp.CodeTooLarge]}
}
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string   // "GET" | "POST" | "PUT" | "DELETE"
	Path    string   // 例："/auth/login"、"/posts/:id/like"
	Binder  Binder   // 绑定方式
	Auth    bool     // 是否要求登录（检查 userId）
	Roles   []string // 限定角色（可选）
	Status  int      // 成功状态码，默认 200
	Msg     string   // 成功提示，默认 "OK"
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		// 1) 鉴权/角色
		if a.Auth {
			if err := RequireUser(c, a.Roles...); err != nil {
				Fail(c, err)
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = DecodeJSON(c, &in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
			if bindErr != nil {
				bindErr = bindError(bindErr)
			}
		default: // BindNone: 不绑定
		}
		if bindErr != nil {
			Fail(c, bindErr)
			return
		}

		// 3) 执行 + 统一错误映射
		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, err)
			return
		}
		status := a.Status
		if status == 0 {
			status = http.StatusOK
		}
		r := resp.OK(out)
		if a.Msg != "" {
			r.Msg = a.Msg
		}
		c.JSON(status, r)
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// RequireUser 未带令牌 → unauthorized；令牌无效 → invalid token；角色不符 → 403
func RequireUser(c *gin.Context, roles ...string) error {
	if c.GetString(KeyUserID) == "" {
		if c.GetBool(KeyTokenErr) {
			return domain.InvalidToken("invalid token")
		}
		return domain.Unauthorized("unauthorized")
	}
	if len(roles) > 0 && !slices.Contains(roles, c.GetString(KeyRole)) {
		return domain.Forbidden("forbidden")
	}
	return nil
}

// DecodeJSON 严格解码：未知字段报错，之后按 binding 标签校验
func DecodeJSON(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return bindError(err)
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return bindError(err)
	}
	return nil
}

// bindError 转成字段级信息列表
func bindError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return TooLarge()
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		fields := make([]string, 0, len(ves))
		for _, fe := range ves {
			fields = append(fields, fieldMessage(fe))
		}
		return BadRequest("数据验证失败", fields...)
	}
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return BadRequest("数据验证失败", fmt.Sprintf("%s: expected %s", ute.Field, ute.Type))
	}
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		return BadRequest("数据验证失败", "unexpected field: "+strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`))
	}
	return BadRequest("请求格式错误", err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	if len(name) > 0 {
		name = strings.ToLower(name[:1]) + name[1:]
	}
	switch fe.Tag() {
	case "required":
		return name + ": is required"
	case "email":
		return name + ": must be a valid email"
	case "min":
		return name + ": must be at least " + fe.Param() + " characters"
	case "max":
		return name + ": must be at most " + fe.Param() + " characters"
	case "oneof":
		return name + ": must be one of " + fe.Param()
	}
	return name + ": failed " + fe.Tag()
}

// codeOf 业务错误 → HTTP 语义码
func codeOf(err error) (int, []string) {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae.Code, ae.Fields
	}
	var de *domain.Error
	if errors.As(err, &de) {
		switch de.Kind {
		case domain.KindValidation, domain.KindUploadRejected, domain.KindTooLarge:
			return resp.CodeBadRequest, de.Fields
		case domain.KindUnauthorized, domain.KindInvalidToken:
			return resp.CodeUnauthorized, nil
		case domain.KindForbidden:
			return resp.CodeForbidden, nil
		case domain.KindNotFound:
			return resp.CodeNotFound, nil
		}
	}
	return resp.CodeServerError, nil
}

// Fail 写错误响应；500 只在 debug 模式下带出原始错误
func Fail(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) && !isAErr(err) {
		// 动作内部自己读 body 时超限，只会发生在上传
		err = UploadTooLarge()
	}
	code, fields := codeOf(err)
	msg := err.Error()
	if code == resp.CodeServerError {
		_ = c.Error(err)
		var ae *AErr
		if errors.As(err, &ae) && ae.Msg != "" {
			msg = ae.Msg
		} else {
			msg = ""
		}
		if gin.IsDebugging() {
			fields = append(fields, err.Error())
		}
	}
	if code == resp.CodeTooLarge {
		msg = ""
	}
	c.AbortWithStatusJSON(resp.Status(code), resp.Error(code, msg).WithErrors(fields))
}
