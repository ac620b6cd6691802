package logger

import "context"

var _ Logger = (*NoopLogger)(nil)

// NoopLogger 丢弃所有日志，测试与可选依赖的默认值
type NoopLogger struct{}

// NewNoop 创建空日志记录器
func NewNoop() *NoopLogger { return &NoopLogger{} }

func (*NoopLogger) Debug(string, ...interface{}) {}
func (*NoopLogger) Info(string, ...interface{}) {}
func (*NoopLogger) Warn(string, ...interface{}) {}
func (*NoopLogger) Error(string, ...interface{}) {}

func (*NoopLogger) DebugContext(context.Context, string, ...interface{}) {}
func (*NoopLogger) InfoContext(context.Context, string, ...interface{}) {}
func (*NoopLogger) WarnContext(context.Context, string, ...interface{}) {}
func (*NoopLogger) ErrorContext(context.Context, string, ...interface{}) {}

func (l *NoopLogger) Named(string) Logger { return l }
func (l *NoopLogger) WithFields(...interface{}) Logger { return l }
func (*NoopLogger) Sync() error { return nil }
