package logger

import "io"

// Option 配置选项
type Option func(*BaseLogger)

// WithName 设置 logger 名称
func WithName(name string) Option {
	return func(l *BaseLogger) {
		l.name = name
	}
}

// WithGlobalFields 添加全局字段
func WithGlobalFields(fields ...interface{}) Option {
	return func(l *BaseLogger) {
		for i := 0; i+1 < len(fields); i += 2 {
			if key, ok := fields[i].(string); ok {
				l.globalFields[key] = fields[i+1]
			}
		}
	}
}

// WithHooks 添加钩子
func WithHooks(hooks ...Hook) Option {
	return func(l *BaseLogger) {
		l.hooks = append(l.hooks, hooks...)
	}
}

// WithOutput 追加输出目标（测试中常用于捕获日志）
func WithOutput(w io.Writer) Option {
	return func(l *BaseLogger) {
		l.writers = append(l.writers, w)
	}
}

// WithContextExtractor 替换 context 字段提取器
func WithContextExtractor(fn ContextFieldExtractor) Option {
	return func(l *BaseLogger) {
		l.contextExtractor = fn
	}
}
