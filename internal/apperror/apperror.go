package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrDuplicate    = errors.New("duplicate entity")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrSelfAction   = errors.New("self action rejected")
)

type AppError struct {
	Err     error  // 上面的哨兵错误之一
	Message string // 返回给客户端的描述
	Field   string // 出错字段，可为空
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Validation(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Duplicate 唯一约束冲突；无法确定冲突字段时 field 为空
func Duplicate(resource, field string) *AppError {
	msg := fmt.Sprintf("%s already exists", resource)
	if field != "" {
		msg = fmt.Sprintf("%s with this %s already exists", resource, field)
	}
	return &AppError{
		Err:     ErrDuplicate,
		Message: msg,
		Field:   field,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func NotFound(resource string, id uint) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %d not found", resource, id),
	}
}

func SelfAction(message string) *AppError {
	return &AppError{
		Err:     ErrSelfAction,
		Message: message,
	}
}

// FieldOf 返回 AppError 的出错字段，非 AppError 返回空串
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// MessageOf 返回 AppError 的描述，非 AppError 返回 err.Error()
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
