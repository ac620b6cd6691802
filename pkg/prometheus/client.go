package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client 独立 Registry 与可选的 /metrics HTTP 服务
// 实现 app.Server，HTTPServer.Enabled 为 false 时 Start/Stop 为空操作
type Client struct {
	config   *Config
	registry *prometheus.Registry
	logger   logger.Logger

	httpServer *http.Server
	closed     atomic.Bool
}

// New 创建客户端
func New(cfg *Config, l logger.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Default()
	}

	c := &Client{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		logger:   l.Named("prometheus"),
	}
	if cfg.EnableGoCollector {
		c.registry.MustRegister(collectors.NewGoCollector())
	}
	if cfg.EnableProcessCollector {
		c.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return c, nil
}

// Registry 底层 Registry
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 指标 HTTP Handler
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Start 监听端口并在后台提供指标
func (c *Client) Start() error {
	if !c.config.HTTPServer.Enabled {
		return nil
	}
	if c.closed.Load() {
		return ErrClientClosed
	}

	ln, err := net.Listen("tcp", c.config.HTTPServer.Addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.HTTPServer.Path, c.Handler())
	c.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  c.config.HTTPServer.Timeout,
		WriteTimeout: c.config.HTTPServer.Timeout,
	}

	go func() {
		if err := c.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("metrics server stopped", "error", err)
		}
	}()
	c.logger.Info("metrics server listening", "addr", ln.Addr().String(), "path", c.config.HTTPServer.Path)
	return nil
}

// Stop 关闭 HTTP 服务
func (c *Client) Stop() error {
	if !c.closed.CompareAndSwap(false, true) || c.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.HTTPServer.Timeout)
	defer cancel()
	return c.httpServer.Shutdown(ctx)
}
