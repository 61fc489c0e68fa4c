package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/feed-system/warbler/internal/apperror"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message, field string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": errorBody{Code: code, Message: message, Field: field},
	})
}

// respondError 把业务错误映射为 HTTP 状态码，未知错误记录日志后返回 500
func respondError(c *gin.Context, log *logger.Logger, err error) {
	message := apperror.MessageOf(err)
	field := apperror.FieldOf(err)

	switch {
	case errors.Is(err, apperror.ErrValidation):
		abortWithError(c, http.StatusBadRequest, "validation_error", message, field)
	case errors.Is(err, apperror.ErrDuplicate):
		abortWithError(c, http.StatusConflict, "duplicate", message, field)
	case errors.Is(err, apperror.ErrUnauthorized):
		abortWithError(c, http.StatusForbidden, "unauthorized", message, field)
	case errors.Is(err, apperror.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "not_found", message, field)
	case errors.Is(err, apperror.ErrSelfAction):
		abortWithError(c, http.StatusUnprocessableEntity, "self_action", message, field)
	default:
		_ = c.Error(err)
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		abortWithError(c, http.StatusInternalServerError, "internal", "internal server error", "")
	}
}

// bindError 请求体无法解析
func bindError(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, "validation_error", err.Error(), "")
}

// parseIDParam 解析路径中的数字 ID，失败时直接返回 400
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		abortWithError(c, http.StatusBadRequest, "validation_error", "invalid "+name, name)
		return 0, false
	}
	return uint(id), true
}
