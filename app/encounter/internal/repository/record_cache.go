package repository

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/pkg/cache/lru"
	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const (
	tierMemory = "memory"
	tierRedis  = "redis"
	tierStore  = "store"
)

// CacheConfig 两级缓存配置
type CacheConfig struct {
	LocalSize int           `mapstructure:"local_size" json:"local_size" yaml:"local_size"`
	LocalTTL  time.Duration `mapstructure:"local_ttl" json:"local_ttl" yaml:"local_ttl"`
	// RemoteTTL 为 0 表示不过期
	RemoteTTL time.Duration `mapstructure:"remote_ttl" json:"remote_ttl" yaml:"remote_ttl"`

	// DisableLocal 关闭进程内一级，多进程部署必须关闭
	// 配置了远端缓存时进程内一级总是关闭，其他进程的写入只会失效远端
	DisableLocal bool `mapstructure:"disable_local" json:"disable_local" yaml:"disable_local"`
}

// DefaultCacheConfig 默认配置
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		LocalSize: 10000,
		LocalTTL:  5 * time.Minute,
		RemoteTTL: 5 * time.Minute,
	}
}

// LoadFunc 批量回源，不存在的键不出现在结果中
type LoadFunc[T any] func(ctx context.Context, keys []string) (map[string]T, error)

// RecordCache 读穿透缓存：进程内 LRU 或远端缓存 -> 存储
// 返回给调用方的值都是副本
type RecordCache[T any] struct {
	name string
	// local 为 nil 表示进程内一级关闭
	local     *lru.LRU[string, T]
	remote    dao.CacheStore
	remoteTTL time.Duration
	load      LoadFunc[T]
	clone     func(T) T
	group     singleflight.Group

	// epoch 每次失效递增，回源期间发生过失效则不回填
	epoch atomic.Uint64

	logger  logger.Logger
	metrics *metrics.EncounterMetrics
}

// CacheOption 缓存选项
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	clock clockwork.Clock
}

// WithCacheClock 替换 LRU 使用的时钟
func WithCacheClock(clock clockwork.Clock) CacheOption {
	return func(o *cacheOptions) { o.clock = clock }
}

// NewRecordCache 创建缓存
// remote 非 nil 时只使用远端一级，remote 为 nil 且未关闭时只使用进程内一级
func NewRecordCache[T any](
	name string,
	cfg *CacheConfig,
	remote dao.CacheStore,
	load LoadFunc[T],
	clone func(T) T,
	l logger.Logger,
	m *metrics.EncounterMetrics,
	opts ...CacheOption,
) (*RecordCache[T], error) {
	merged, err := config.MergeConfig(DefaultCacheConfig(), cfg)
	if err != nil {
		return nil, err
	}

	o := &cacheOptions{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(o)
	}

	var local *lru.LRU[string, T]
	if remote == nil && !merged.DisableLocal {
		local = lru.New[string, T](&lru.Config{
			MaxSize:    merged.LocalSize,
			DefaultTTL: merged.LocalTTL,
		}, lru.WithClock[string, T](o.clock))
	}

	return &RecordCache[T]{
		name:      name,
		local:     local,
		remote:    remote,
		remoteTTL: merged.RemoteTTL,
		load:      load,
		clone:     clone,
		logger:    l.Named("repository.cache." + name),
		metrics:   m,
	}, nil
}

func (c *RecordCache[T]) remoteKey(key string) string {
	return c.name + ":" + key
}

// Get 读取单条记录，同一个键的并发未命中只回源一次
func (c *RecordCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	if c.local != nil {
		if v, ok := c.local.Get(key); ok {
			c.metrics.RecordCacheHit(tierMemory)
			return c.clone(v), nil
		}
		c.metrics.RecordCacheMiss(tierMemory)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		found, err := c.fetch(ctx, []string{key})
		if err != nil {
			return nil, err
		}
		v, ok := found[key]
		if !ok {
			return nil, ErrNotFound
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return c.clone(v.(T)), nil
}

// GetBulk 批量读取，远端缓存与存储各最多一次往返
func (c *RecordCache[T]) GetBulk(ctx context.Context, keys []string) (map[string]T, error) {
	keys = dedupe(keys)
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	misses := keys
	if c.local != nil {
		var hits map[string]T
		hits, misses = c.local.GetMany(keys)
		for k, v := range hits {
			c.metrics.RecordCacheHit(tierMemory)
			out[k] = c.clone(v)
		}
		if len(misses) == 0 {
			return out, nil
		}
		for range misses {
			c.metrics.RecordCacheMiss(tierMemory)
		}
	}

	found, err := c.fetch(ctx, misses)
	if err != nil {
		return nil, err
	}
	for k, v := range found {
		out[k] = c.clone(v)
	}
	return out, nil
}

// fetch 处理进程内未命中的键
func (c *RecordCache[T]) fetch(ctx context.Context, keys []string) (map[string]T, error) {
	found := make(map[string]T, len(keys))
	missing := keys

	// 1. 远端缓存，一次 MGET
	if c.remote != nil {
		missing = c.fetchRemote(ctx, keys, found)
	}
	if len(missing) == 0 {
		return found, nil
	}

	// 2. 回源存储，一次批量读取
	epoch := c.epoch.Load()
	loaded, err := c.load(ctx, missing)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordCacheMiss(tierStore)

	// 3. 回填缓存
	backfill := c.epoch.Load() == epoch
	for k, v := range loaded {
		found[k] = v
		if !backfill {
			continue
		}
		if !c.setLocal(k, v, epoch) {
			backfill = false
			continue
		}
		c.putRemote(ctx, k, v)
	}
	if !backfill {
		c.logger.Debug("skip backfill after concurrent invalidation",
			"keys", len(loaded),
		)
	}
	return found, nil
}

// setLocal 写入进程内一级后复查 epoch，期间发生失效则删除刚写入的值
func (c *RecordCache[T]) setLocal(key string, v T, epoch uint64) bool {
	if c.local == nil {
		return c.epoch.Load() == epoch
	}
	c.local.Set(key, c.clone(v))
	if c.epoch.Load() != epoch {
		c.local.Delete(key)
		return false
	}
	return true
}

// fetchRemote 命中的写入 found，返回仍未命中的键
func (c *RecordCache[T]) fetchRemote(ctx context.Context, keys []string, found map[string]T) []string {
	rkeys := make([]string, len(keys))
	for i, k := range keys {
		rkeys[i] = c.remoteKey(k)
	}

	vals, err := c.remote.MGet(ctx, rkeys)
	if err != nil {
		c.logger.Warn("failed to read remote cache, fallback to store",
			"keys", len(keys),
			"error", err,
		)
		return keys
	}

	var missing []string
	for i, k := range keys {
		if i >= len(vals) || vals[i] == nil {
			c.metrics.RecordCacheMiss(tierRedis)
			missing = append(missing, k)
			continue
		}
		var v T
		if err := json.Unmarshal(vals[i], &v); err != nil {
			c.logger.Warn("failed to decode remote cache entry",
				"key", k,
				"error", err,
			)
			missing = append(missing, k)
			continue
		}
		c.metrics.RecordCacheHit(tierRedis)
		found[k] = v
	}
	return missing
}

func (c *RecordCache[T]) putRemote(ctx context.Context, key string, v T) {
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("failed to encode cache entry",
			"key", key,
			"error", err,
		)
		return
	}
	if err := c.remote.Set(ctx, c.remoteKey(key), data, c.remoteTTL); err != nil {
		c.logger.Warn("failed to write remote cache",
			"key", key,
			"error", err,
		)
	}
}

// Put 写入缓存
func (c *RecordCache[T]) Put(ctx context.Context, key string, v T) {
	if c.local != nil {
		c.local.Set(key, c.clone(v))
	}
	c.putRemote(ctx, key, v)
}

// Invalidate 删除缓存中的键，远端失败只记录日志
func (c *RecordCache[T]) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.epoch.Add(1)
	for _, k := range keys {
		if c.local != nil {
			c.local.Delete(k)
		}
		c.group.Forget(k)
	}
	if c.remote == nil {
		return
	}

	rkeys := make([]string, len(keys))
	for i, k := range keys {
		rkeys[i] = c.remoteKey(k)
	}
	if err := c.remote.Delete(ctx, rkeys...); err != nil {
		c.logger.Warn("failed to invalidate remote cache",
			"keys", keys,
			"error", err,
		)
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
