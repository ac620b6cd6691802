package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/errors"
)

// APIKeyHeader 机器人调用方携带的密钥头
const APIKeyHeader = "X-API-Key"

// APIKey 校验调用方密钥，skipPaths 中的路径不校验
func APIKey(keys []string, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		got := []byte(c.GetHeader(APIKeyHeader))
		for _, k := range keys {
			if subtle.ConstantTimeCompare(got, []byte(k)) == 1 {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    errors.CodeUnAuthorized,
			"message": "invalid api key",
			"data":    nil,
		})
	}
}
