package web

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/errors"
)

// BindAndValidate 绑定 JSON 请求体并校验，失败时写出 400 响应并返回 false
func BindAndValidate(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			Error(c, errors.CodeInvalidParams, verrs.Error())
			return false
		}
		Error(c, errors.CodeInvalidParams, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// BindQuery 绑定查询参数并校验
func BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		Error(c, errors.CodeInvalidParams, "invalid query parameters: "+err.Error())
		return false
	}
	return true
}
