package sentry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"go.opentelemetry.io/otel/trace"
)

// Client Sentry 客户端，DSN 为空时所有上报都是空操作
type Client struct {
	hub    *sentry.Hub
	config *Config
	closed atomic.Bool

	stats struct {
		eventsTotal    atomic.Uint64
		eventsCaptured atomic.Uint64
		eventsDropped  atomic.Uint64
	}
}

// Option 创建选项
type Option func(*sentry.ClientOptions)

// WithTransport 替换事件传输
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// New 创建 Sentry 客户端
func New(cfg *Config, opts ...Option) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to merge sentry config")
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: newCfg}
	if newCfg.DSN == "" {
		return c, nil
	}

	co := newCfg.toClientOptions()
	for _, opt := range opts {
		opt(&co)
	}
	client, err := sentry.NewClient(co)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sentry client")
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for key, value := range newCfg.Tags {
			scope.SetTag(key, value)
		}
	})
	c.hub = hub
	return c, nil
}

// Enabled 是否会真正上报
func (c *Client) Enabled() bool {
	return c.hub != nil && !c.closed.Load()
}

// CaptureException 上报错误，tags 只作用于本次事件
func (c *Client) CaptureException(ctx context.Context, err error, tags map[string]string) *sentry.EventID {
	if !c.Enabled() || err == nil {
		return nil
	}
	c.stats.eventsTotal.Add(1)

	var id *sentry.EventID
	c.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			scope.SetTag("trace_id", sc.TraceID().String())
		}
		id = c.hub.CaptureException(err)
	})
	c.count(id)
	return id
}

// RecoverWithContext 上报 recover 得到的值，不重新 panic
func (c *Client) RecoverWithContext(ctx context.Context, recovered any) *sentry.EventID {
	if !c.Enabled() || recovered == nil {
		return nil
	}
	c.stats.eventsTotal.Add(1)
	id := c.hub.RecoverWithContext(ctx, recovered)
	c.count(id)
	return id
}

func (c *Client) count(id *sentry.EventID) {
	if id != nil && *id != "" {
		c.stats.eventsCaptured.Add(1)
		return
	}
	c.stats.eventsDropped.Add(1)
}

// Flush 等待事件发送完成
func (c *Client) Flush(timeout time.Duration) bool {
	if c.hub == nil {
		return true
	}
	return c.hub.Flush(timeout)
}

// Close 发送剩余事件后关闭，实现 app.Closer
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return ErrClientClosed
	}
	c.Flush(c.config.ShutdownTimeout)
	return nil
}

// Stats 统计信息
type Stats struct {
	EventsTotal    uint64
	EventsCaptured uint64
	EventsDropped  uint64
}

// Stats 获取统计信息
func (c *Client) Stats() Stats {
	return Stats{
		EventsTotal:    c.stats.eventsTotal.Load(),
		EventsCaptured: c.stats.eventsCaptured.Load(),
		EventsDropped:  c.stats.eventsDropped.Load(),
	}
}
