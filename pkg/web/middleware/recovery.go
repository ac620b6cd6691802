package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/sentry"
	weberrors "github.com/lk2023060901/xdooria-encounter/pkg/web/errors"
)

// Recovery 捕获 handler panic 并上报默认 Sentry 客户端，返回 500 统一响应
func Recovery(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if isBrokenPipe(rec) {
				l.WarnContext(c.Request.Context(), "http broken pipe", "error", rec, "path", c.Request.URL.Path)
				c.Abort()
				return
			}

			l.ErrorContext(c.Request.Context(), "http recovery from panic",
				"error", rec,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)
			sentry.RecoverWithContext(c.Request.Context(), rec)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    weberrors.CodeInternalError,
				"message": "internal error",
				"data":    nil,
			})
		}()
		c.Next()
	}
}

func isBrokenPipe(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr.Err, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
