package sentry

import (
	"context"
	"sync"

	"github.com/getsentry/sentry-go"
)

var (
	defaultClient *Client
	defaultMu     sync.RWMutex
)

// SetDefault 设置包级默认客户端，nil 表示关闭上报
func SetDefault(c *Client) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClient = c
}

// Default 获取默认客户端，可能为 nil
func Default() *Client {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultClient
}

// CaptureException 使用默认客户端上报错误
func CaptureException(ctx context.Context, err error, tags map[string]string) *sentry.EventID {
	if c := Default(); c != nil {
		return c.CaptureException(ctx, err, tags)
	}
	return nil
}

// RecoverWithContext 使用默认客户端上报 panic
func RecoverWithContext(ctx context.Context, recovered any) *sentry.EventID {
	if c := Default(); c != nil {
		return c.RecoverWithContext(ctx, recovered)
	}
	return nil
}
