package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/sourcegraph/conc"
)

var (
	ErrAppAlreadyRunning = errors.New("application is already running")
)

// Application 进程级应用接口
type Application interface {
	Run() error
	Stop()
	Shutdown() error
	Logger(name string) logger.Logger
	AppLogger() logger.Logger
}

// Server 可启动、可停止的服务（HTTP、指标端点、后台任务）
type Server interface {
	Start() error
	Stop() error
}

// GracefulServer 支持优雅停止的服务
type GracefulServer interface {
	Server
	GracefulStop() error
}

// Closer 资源清理接口（PostgreSQL、Redis、Kafka Writer）
type Closer interface {
	Close() error
}

// BaseApp Application 的默认实现
// 服务按注册顺序启动、并发停止，Closer 按注册的逆序关闭
type BaseApp struct {
	opts     Options
	logger   logger.Logger
	registry *LoggerRegistry

	mu      sync.RWMutex
	servers []Server
	closers []Closer

	ctx    context.Context
	cancel context.CancelFunc

	started atomic.Bool
	closed  atomic.Bool
}

// NewBaseApp 创建 BaseApp
func NewBaseApp(opts ...Option) *BaseApp {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &BaseApp{
		opts:     o,
		logger:   o.Logger.Named(o.Name),
		registry: NewLoggerRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AppLogger 应用主日志
func (a *BaseApp) AppLogger() logger.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logger
}

// Logger 获取具名日志，未注册时回退到主日志
func (a *BaseApp) Logger(name string) logger.Logger {
	if l := a.registry.Get(name); l != nil {
		return l
	}
	return a.AppLogger().Named(name)
}

// RegisterLogger 注册具名日志
func (a *BaseApp) RegisterLogger(name string, l logger.Logger) {
	a.registry.Register(name, l)
}

// Run 启动所有服务并阻塞，直到收到 SIGINT/SIGTERM 或调用 Stop
func (a *BaseApp) Run() error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAppAlreadyRunning
	}

	if len(a.opts.NamedLoggers) > 0 {
		if err := a.registry.InitLoggers(a.opts.NamedLoggers); err != nil {
			a.logger.Error("failed to initialize named loggers", "error", err)
			return err
		}
	}

	info := GetInfo()
	a.logger.Info("application starting",
		"name", a.opts.Name,
		"version", info.Version,
		"commit", info.GitCommit,
		"build_date", info.BuildDate,
		"go_version", info.GoVersion,
		"id", a.opts.ID,
	)

	a.mu.RLock()
	servers := append([]Server(nil), a.servers...)
	a.mu.RUnlock()

	for i, srv := range servers {
		if err := srv.Start(); err != nil {
			a.logger.Error("failed to start server", "index", i, "error", err)
			_ = a.Shutdown()
			return fmt.Errorf("failed to start server %d: %w", i, err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		a.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-a.ctx.Done():
		a.logger.Info("stop requested, shutting down")
	}

	return a.Shutdown()
}

// Stop 请求 Run 退出
func (a *BaseApp) Stop() {
	a.cancel()
}

// Shutdown 停止服务并清理资源，可重复调用
func (a *BaseApp) Shutdown() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.cancel()

	a.mu.RLock()
	servers := append([]Server(nil), a.servers...)
	closers := append([]Closer(nil), a.closers...)
	a.mu.RUnlock()

	a.logger.Info("application shutting down", "servers", len(servers), "closers", len(closers))

	var wg conc.WaitGroup
	for _, srv := range servers {
		wg.Go(func() {
			var err error
			if gs, ok := srv.(GracefulServer); ok {
				err = gs.GracefulStop()
			} else {
				err = srv.Stop()
			}
			if err != nil {
				a.logger.Error("failed to stop server", "error", err)
			}
		})
	}

	done := make(chan struct{})
	go func() {
		// 服务 Stop 中的 panic 记录后继续关闭资源
		if r := wg.WaitAndRecover(); r != nil {
			a.logger.Error("server stop panicked", "panic", r.Value)
		}
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("all servers stopped")
	case <-time.After(a.opts.StopTimeout):
		a.logger.Warn("shutdown timeout, closing resources anyway", "timeout", a.opts.StopTimeout)
	}

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			a.logger.Error("failed to close component", "error", err)
			errs = append(errs, err)
		}
	}

	a.registry.SyncAll()
	_ = a.logger.Sync()
	a.logger.Info("application exited")
	return errors.Join(errs...)
}

// AppendServer 添加服务
func (a *BaseApp) AppendServer(srv ...Server) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servers = append(a.servers, srv...)
}

// AppendCloser 添加资源清理组件
func (a *BaseApp) AppendCloser(closer ...Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer...)
}
