package domain

import (
	"errors"
	"strings"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthorized
	KindInvalidToken
	KindForbidden
	KindNotFound
	KindUploadRejected
	KindTooLarge
)

// Error 业务错误；Fields 为字段级校验信息
type Error struct {
	Kind   Kind
	Msg    string
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if len(e.Fields) > 0 {
		return strings.Join(e.Fields, "; ")
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "domain error"
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, fields ...string) error {
	return &Error{Kind: KindValidation, Msg: msg, Fields: fields}
}
func Unauthorized(msg string) error   { return &Error{Kind: KindUnauthorized, Msg: msg} }
func InvalidToken(msg string) error   { return &Error{Kind: KindInvalidToken, Msg: msg} }
func Forbidden(msg string) error      { return &Error{Kind: KindForbidden, Msg: msg} }
func NotFound(msg string) error       { return &Error{Kind: KindNotFound, Msg: msg} }
func UploadRejected(msg string) error { return &Error{Kind: KindUploadRejected, Msg: msg} }
func TooLarge(msg string) error       { return &Error{Kind: KindTooLarge, Msg: msg} }

// KindOf 非业务错误返回 0
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// ErrDuplicate 唯一约束冲突（用户名/邮箱）
var ErrDuplicate = errors.New("duplicate key")

// ErrRecordNotFound 仓储层写操作找不到目标记录
var ErrRecordNotFound = errors.New("record not found")

// ErrPostLocked 帖子已锁定，不能再评论
var ErrPostLocked = errors.New("post is locked")
