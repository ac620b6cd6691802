package logger

import "context"

// Logger 日志接口，业务代码只依赖此接口
// keysAndValues 为交替的 key/value，也可以直接传入 zap.Field
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	DebugContext(ctx context.Context, msg string, keysAndValues ...interface{})
	InfoContext(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnContext(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorContext(ctx context.Context, msg string, keysAndValues ...interface{})

	Named(name string) Logger
	WithFields(keysAndValues ...interface{}) Logger

	Sync() error
}
