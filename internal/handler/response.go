// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/pkg/log"
)

// errorTitles 是各错误类别对应的 error 字段文案。
var errorTitles = map[apperror.Kind]string{
	apperror.KindConnection: "Database connection failed",
	apperror.KindQuery:      "Query execution failed",
	apperror.KindNotFound:   "File not found",
	apperror.KindStorage:    "File storage failure",
	apperror.KindProcess:    "Document generation failed",
	apperror.KindValidation: "Document validation failed",
	apperror.KindInternal:   "Internal server error",
}

// respondError 把服务层错误转换为 {error, details, category} 响应。
func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	details := err.Error()
	if e, ok := apperror.As(err); ok {
		details = e.Details()
	}

	if status >= http.StatusInternalServerError {
		log.Errorw("请求处理失败", "path", c.FullPath(), "category", kind, "error", err)
	}
	c.JSON(status, gin.H{
		"error":    errorTitles[kind],
		"details":  details,
		"category": kind,
	})
}

// badRequest 返回 400，用于请求体或必填参数校验失败。
func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{
		"error":    msg,
		"category": apperror.KindValidation,
	}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
