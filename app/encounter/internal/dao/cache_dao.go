package dao

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/pkg/database/redis"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// CacheStore 远端缓存层，值为序列化后的记录
type CacheStore interface {
	// MGet 返回值与 keys 一一对应，未命中的位置为 nil
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheDAO 基于 Redis 的缓存层
type CacheDAO struct {
	client *redis.Client
	prefix string
	logger logger.Logger
}

var _ CacheStore = (*CacheDAO)(nil)

// NewCacheDAO 创建缓存 DAO，所有键统一加 prefix
func NewCacheDAO(client *redis.Client, prefix string, l logger.Logger) *CacheDAO {
	return &CacheDAO{
		client: client,
		prefix: prefix,
		logger: l.Named("dao.cache"),
	}
}

func (d *CacheDAO) key(k string) string {
	return d.prefix + k
}

// MGet 批量读取
func (d *CacheDAO) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = d.key(k)
	}

	vals, err := d.client.MGet(ctx, full...)
	if err != nil {
		d.logger.Debug("cache mget failed",
			"count", len(keys),
			"error", err,
		)
		return nil, errors.Wrap(err, "failed to read cache")
	}
	for i, v := range vals {
		if v != nil {
			out[i] = []byte(*v)
		}
	}
	return out, nil
}

// Set 写入缓存
func (d *CacheDAO) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := d.client.Set(ctx, d.key(key), value, ttl); err != nil {
		return errors.Wrapf(err, "failed to write cache key %s", key)
	}
	return nil
}

// Delete 删除缓存
func (d *CacheDAO) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = d.key(k)
	}
	if _, err := d.client.Del(ctx, full...); err != nil {
		return errors.Wrap(err, "failed to delete cache keys")
	}
	return nil
}
