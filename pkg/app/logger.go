package app

import (
	"fmt"
	"sync"

	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// LoggerRegistry 具名日志注册表，例如把审计类的捕获结果写到单独文件
type LoggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]logger.Logger
}

func NewLoggerRegistry() *LoggerRegistry {
	return &LoggerRegistry{loggers: make(map[string]logger.Logger)}
}

// Register 注册具名日志，同名覆盖
func (r *LoggerRegistry) Register(name string, l logger.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggers[name] = l
}

// Get 获取具名日志，不存在返回 nil
func (r *LoggerRegistry) Get(name string) logger.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loggers[name]
}

// SyncAll 刷新所有日志缓冲
func (r *LoggerRegistry) SyncAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.loggers {
		_ = l.Sync()
	}
}

// InitLoggers 根据配置批量创建具名日志
func (r *LoggerRegistry) InitLoggers(configs map[string]*logger.Config) error {
	for name, cfg := range configs {
		l, err := logger.New(cfg, logger.WithName(name))
		if err != nil {
			return fmt.Errorf("failed to create logger %s: %w", name, err)
		}
		r.Register(name, l)
	}
	return nil
}
