package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator 基于 validate tag 的配置验证器
type Validator struct {
	validate *validator.Validate
}

// NewValidator 创建验证器
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate 验证配置结构体
// 常用 tag：required、min/max、gte/lte、oneof、dive
func (v *Validator) Validate(cfg any) error {
	if cfg == nil {
		return ErrNilConfig
	}
	if err := v.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %s", ErrValidationFailed, formatValidationErrors(err))
	}
	return nil
}

// RegisterValidation 注册自定义规则
func (v *Validator) RegisterValidation(tag string, fn validator.Func) error {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("failed to register custom validation %s: %w", tag, err)
	}
	return nil
}

func formatValidationErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field, param := fe.Namespace(), fe.Param()
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("field '%s' is required", field))
		case "min", "gte":
			parts = append(parts, fmt.Sprintf("field '%s' must be at least %s", field, param))
		case "max", "lte":
			parts = append(parts, fmt.Sprintf("field '%s' must be at most %s", field, param))
		case "gt":
			parts = append(parts, fmt.Sprintf("field '%s' must be greater than %s", field, param))
		case "oneof":
			parts = append(parts, fmt.Sprintf("field '%s' must be one of [%s]", field, param))
		default:
			parts = append(parts, fmt.Sprintf("field '%s' failed validation '%s'", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
