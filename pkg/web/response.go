package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	TraceID string `json:"trace_id,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeOK,
		Message: "ok",
		Data:    data,
		TraceID: logger.RequestIDFrom(c.Request.Context()),
	})
}

// Error 错误响应，HTTP 状态码由业务码推导
func Error(c *gin.Context, code int, message string) {
	c.JSON(errors.CodeToStatus(code), Response{
		Code:    code,
		Message: message,
		TraceID: logger.RequestIDFrom(c.Request.Context()),
	})
}

// AbortWithError 中断后续处理并返回错误
func AbortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(errors.CodeToStatus(code), Response{
		Code:    code,
		Message: message,
		TraceID: logger.RequestIDFrom(c.Request.Context()),
	})
}
