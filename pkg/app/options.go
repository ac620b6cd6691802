package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// Options 应用选项
type Options struct {
	ID          string
	Name        string
	StopTimeout time.Duration
	Logger      logger.Logger

	// NamedLoggers 在 Run 时按名称创建独立输出的日志
	NamedLoggers map[string]*logger.Config
}

// Option 选项函数
type Option func(*Options)

// DefaultOptions 默认选项
func DefaultOptions() Options {
	return Options{
		ID:          uuid.NewString(),
		Name:        AppName,
		StopTimeout: 15 * time.Second,
		Logger:      logger.Default(),
	}
}

// WithID 设置实例 ID
func WithID(id string) Option {
	return func(o *Options) { o.ID = id }
}

// WithName 设置应用名
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithLogger 设置主日志
func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithNamedLoggers 设置具名日志配置
func WithNamedLoggers(loggers map[string]*logger.Config) Option {
	return func(o *Options) { o.NamedLoggers = loggers }
}

// WithStopTimeout 设置优雅停止超时
func WithStopTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.StopTimeout = d
		}
	}
}
