package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
)

// Cache 进程内远端缓存替身，行为与 CacheDAO 一致
type Cache struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int
	err   error
}

var _ dao.CacheStore = (*Cache)(nil)

// NewCache 创建缓存
func NewCache() *Cache {
	return &Cache{
		data:  make(map[string][]byte),
		calls: make(map[string]int),
	}
}

// SetError 之后所有调用返回 err，传 nil 恢复
func (c *Cache) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls 指定操作的调用次数
func (c *Cache) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Has 键是否存在
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// MGet 批量读取
func (c *Cache) MGet(_ context.Context, keys []string) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["MGet"]++
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := c.data[k]; ok {
			out[i] = slices.Clone(v)
		}
	}
	return out, nil
}

// Set 写入，TTL 被忽略
func (c *Cache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["Set"]++
	if c.err != nil {
		return c.err
	}
	c.data[key] = slices.Clone(value)
	return nil
}

// Delete 删除
func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["Delete"]++
	if c.err != nil {
		return c.err
	}
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}
