// Package apperror 定义了网关统一的错误分类。
// 每个错误都带有机器可读的 Kind 和给调用方看的详细信息。
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 是错误类别。
type Kind string

const (
	KindConnection Kind = "connection"
	KindQuery      Kind = "query"
	KindNotFound   Kind = "not_found"
	KindStorage    Kind = "storage"
	KindProcess    Kind = "process"
	KindValidation Kind = "validation"
	KindInternal   Kind = "internal"
)

// NotFound 的两种来源：索引中没有记录，或者目录中没有物理文件。
const (
	CauseIndex   = "index"
	CauseCatalog = "catalog"
)

// Error 是携带分类信息的错误。
type Error struct {
	Kind   Kind
	Op     string // 出错的操作，例如 "file.retrieve"
	Detail string // 返回给调用方的说明
	Cause  string // 可选的细分原因，只用于日志
	Err    error
}

func (e *Error) Error() string {
	msg := e.Detail
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Details 返回不带操作前缀的说明，用于 HTTP 响应的 details 字段。
func (e *Error) Details() string {
	if e.Err != nil && e.Detail != "" {
		return e.Detail + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Detail
}

func newError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

func Connection(op string, err error) *Error {
	return newError(KindConnection, op, "database connection failed", err)
}

func Query(op string, err error) *Error {
	return newError(KindQuery, op, "query execution failed", err)
}

// NotFound 构造一个 NotFound 错误，cause 取 CauseIndex 或 CauseCatalog。
func NotFound(op, cause, detail string) *Error {
	e := newError(KindNotFound, op, detail, nil)
	e.Cause = cause
	return e
}

func Storage(op, detail string, err error) *Error {
	return newError(KindStorage, op, detail, err)
}

func Process(op, detail string, err error) *Error {
	return newError(KindProcess, op, detail, err)
}

func Validation(op, detail string) *Error {
	return newError(KindValidation, op, detail, nil)
}

// KindOf 返回错误链中第一个 *Error 的类别，未分类的错误视为 KindInternal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As 是 errors.As 的便捷封装。
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Is 判断错误链中是否存在指定类别的 *Error。
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// HTTPStatus 把错误类别映射为 HTTP 状态码。
// 输入校验失败由 handler 在边界处返回 400，这里的 validation 指的是服务内部的校验（例如生成结果的编码检查）。
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
