// Package apperr 定义服务层统一的错误分类，HTTP 层据此映射状态码。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别。
type Kind string

const (
	KindAuthRequired Kind = "auth_required"
	KindForbidden    Kind = "forbidden"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnavailable  Kind = "unavailable"
	KindInternal     Kind = "internal"
)

// Error 携带类别、对外消息与底层原因。
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 构造一个分类错误。
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func AuthRequired() *Error {
	return New(KindAuthRequired, "authentication required", nil)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message, nil)
}

func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func Conflict(message string) *Error {
	return New(KindConflict, message, nil)
}

// Unavailable 包装后端读写失败。
func Unavailable(message string, cause error) *Error {
	return New(KindUnavailable, message, cause)
}

// KindOf 返回错误链上第一个分类错误的类别，未分类错误视为 internal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于指定类别。
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf 返回可对外展示的消息，未分类错误不暴露细节。
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus 把错误映射到 HTTP 状态码。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
