package config

import "errors"

var (
	// ErrValidationFailed 配置验证失败
	ErrValidationFailed = errors.New("config validation failed")

	// ErrNilConfig 配置为 nil
	ErrNilConfig = errors.New("config cannot be nil")

	// ErrEmptyConfig 配置文件没有任何键，通常是文件正在被改写
	ErrEmptyConfig = errors.New("config file has no keys")
)
