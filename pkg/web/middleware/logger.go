package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// Logger 访问日志，4xx 记 warn，5xx 与 c.Errors 记 error
func Logger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"ip", c.ClientIP(),
			"latency", time.Since(start).String(),
		}

		ctx := c.Request.Context()
		switch {
		case len(c.Errors) > 0:
			l.ErrorContext(ctx, "http request failed", append(fields, "errors", c.Errors.String())...)
		case status >= 500:
			l.ErrorContext(ctx, "http request", fields...)
		case status >= 400:
			l.WarnContext(ctx, "http request", fields...)
		default:
			l.DebugContext(ctx, "http request", fields...)
		}
	}
}
