package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/metrics"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/middleware"
)

// Server 基于 gin 的 HTTP 服务，实现 app.Server
type Server struct {
	engine *gin.Engine
	config *Config
	logger logger.Logger

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// NewServer 创建 HTTP 服务并挂载公共中间件：request id、访问日志、panic 恢复、指标
func NewServer(cfg *Config, l logger.Logger, m *metrics.HTTPMetrics) *Server {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		merged = DefaultConfig()
	}
	if l == nil {
		l = logger.Default()
	}

	gin.SetMode(merged.Mode)
	engine := gin.New()
	engine.Use(middleware.RequestID())
	if merged.Tracing {
		engine.Use(middleware.Tracing("web"))
	}
	engine.Use(
		middleware.Logger(l.Named("web.access")),
		middleware.Recovery(l.Named("web.recovery")),
	)
	if m != nil {
		engine.Use(middleware.Metrics(m))
	}
	if merged.EnableCORS {
		engine.Use(middleware.CORS(merged.AllowOrigins))
	}
	if len(merged.APIKeys) > 0 {
		engine.Use(middleware.APIKey(merged.APIKeys, "/healthz"))
	}

	return &Server{
		engine: engine,
		config: merged,
		logger: l.Named("web.server"),
	}
}

// Router 用于注册路由
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Handler http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr 实际监听地址，Start 之前为 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start 监听端口并在后台处理请求
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()
	s.server = &http.Server{
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
	s.logger.Info("http server listening", "addr", s.addr.String())
	return nil
}

// Stop 立即关闭
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

// GracefulStop 等待进行中的请求完成
func (s *Server) GracefulStop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("http server exited")
	return nil
}
