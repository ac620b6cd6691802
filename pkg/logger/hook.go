package logger

import (
	"go.uber.org/zap/zapcore"
)

// Hook 日志钩子，OnWrite 返回 false 时丢弃该条日志
type Hook interface {
	OnWrite(entry zapcore.Entry, fields []zapcore.Field) bool
}

// HookFunc 函数式 Hook
type HookFunc func(entry zapcore.Entry, fields []zapcore.Field) bool

func (f HookFunc) OnWrite(entry zapcore.Entry, fields []zapcore.Field) bool {
	return f(entry, fields)
}

// HookedCore 在写入前依次执行钩子
type HookedCore struct {
	zapcore.Core
	hooks []Hook
}

// NewHookedCore 创建带钩子的 Core
func NewHookedCore(core zapcore.Core, hooks ...Hook) zapcore.Core {
	return &HookedCore{Core: core, hooks: hooks}
}

func (h *HookedCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if h.Enabled(entry.Level) {
		return ce.AddCore(entry, h)
	}
	return ce
}

func (h *HookedCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	for _, hook := range h.hooks {
		if !hook.OnWrite(entry, fields) {
			return nil
		}
	}
	return h.Core.Write(entry, fields)
}

func (h *HookedCore) With(fields []zapcore.Field) zapcore.Core {
	return &HookedCore{Core: h.Core.With(fields), hooks: h.hooks}
}

// RedactHook 将指定 key 的字符串字段替换为 "***"
func RedactHook(keys ...string) Hook {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}

	return HookFunc(func(_ zapcore.Entry, fields []zapcore.Field) bool {
		for i := range fields {
			if _, ok := keySet[fields[i].Key]; ok && fields[i].Type == zapcore.StringType {
				fields[i].String = "***"
			}
		}
		return true
	})
}
