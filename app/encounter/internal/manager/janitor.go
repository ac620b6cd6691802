package manager

import (
	"context"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Sweeper 结束所有超时的遭遇，返回结束的数量
type Sweeper interface {
	SweepExpired(ctx context.Context) int
}

// JanitorConfig 超时清理配置
type JanitorConfig struct {
	// Interval 最小 1s
	Interval time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`
}

// DefaultJanitorConfig 默认配置
func DefaultJanitorConfig() *JanitorConfig {
	return &JanitorConfig{Interval: 5 * time.Second}
}

// SessionJanitor 定时主动结束超时遭遇，与动作时的惰性检查互补
type SessionJanitor struct {
	sweeper  Sweeper
	interval time.Duration
	logger   logger.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	started bool
}

// NewSessionJanitor 创建清理任务
func NewSessionJanitor(sweeper Sweeper, cfg *JanitorConfig, l logger.Logger) *SessionJanitor {
	interval := DefaultJanitorConfig().Interval
	if cfg != nil && cfg.Interval > 0 {
		interval = cfg.Interval
	}

	l = l.Named("manager.janitor")
	cl := &cronLogger{logger: l}
	return &SessionJanitor{
		sweeper:  sweeper,
		interval: interval,
		logger:   l,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start 启动定时任务
func (j *SessionJanitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return nil
	}

	j.cron.Schedule(cron.Every(j.interval), cron.FuncJob(j.Sweep))
	j.cron.Start()
	j.started = true

	j.logger.Info("session janitor started",
		"interval", j.interval,
	)
	return nil
}

// Stop 停止定时任务并等待进行中的清理结束
func (j *SessionJanitor) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.started {
		return nil
	}

	ctx := j.cron.Stop()
	<-ctx.Done()
	j.started = false

	j.logger.Info("session janitor stopped")
	return nil
}

// Sweep 执行一次清理
func (j *SessionJanitor) Sweep() {
	if n := j.sweeper.SweepExpired(context.Background()); n > 0 {
		j.logger.Info("expired sessions swept",
			"count", n,
		)
	}
}

// cronLogger 把 cron 的日志接到 logger.Logger
type cronLogger struct {
	logger logger.Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, append(keysAndValues, "error", err)...)
}
