package manager

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/pkg/database/redis"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

const (
	// GuardBackendMemory 单进程部署
	GuardBackendMemory = "memory"
	// GuardBackendRedis 多进程部署
	GuardBackendRedis = "redis"
)

// GuardConfig 并发守卫配置
type GuardConfig struct {
	Backend   string `mapstructure:"backend" json:"backend" yaml:"backend" validate:"omitempty,oneof=memory redis"`
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix" yaml:"key_prefix"`
	// TTL 必须大于遭遇超时，进程崩溃后锁自动过期
	TTL time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl"`
}

// DefaultGuardConfig 默认配置
func DefaultGuardConfig() *GuardConfig {
	return &GuardConfig{
		Backend:   GuardBackendMemory,
		KeyPrefix: "encounter:guard:",
		TTL:       2 * time.Minute,
	}
}

// CaptureGuard 保证每个训练师同时最多一个进行中的遭遇
type CaptureGuard interface {
	// Acquire 测试并占用，已被占用时返回 false
	Acquire(ctx context.Context, trainerID string) (bool, error)
	// Release 释放占用，未占用时无操作
	Release(ctx context.Context, trainerID string) error
	// Held 只读探测
	Held(ctx context.Context, trainerID string) (bool, error)
	// Touch 遭遇有新动作时延长占用期限
	Touch(ctx context.Context, trainerID string) error
}

// MemoryCaptureGuard 进程内守卫
type MemoryCaptureGuard struct {
	mu      sync.Mutex
	held    map[string]struct{}
	metrics *metrics.EncounterMetrics
}

var _ CaptureGuard = (*MemoryCaptureGuard)(nil)

// NewMemoryCaptureGuard 创建进程内守卫
func NewMemoryCaptureGuard(m *metrics.EncounterMetrics) *MemoryCaptureGuard {
	return &MemoryCaptureGuard{
		held:    make(map[string]struct{}),
		metrics: m,
	}
}

// Acquire 占用
func (g *MemoryCaptureGuard) Acquire(_ context.Context, trainerID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[trainerID]; ok {
		g.metrics.RecordGuardConflict()
		return false, nil
	}
	g.held[trainerID] = struct{}{}
	return true, nil
}

// Release 释放
func (g *MemoryCaptureGuard) Release(_ context.Context, trainerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, trainerID)
	return nil
}

// Held 是否被占用
func (g *MemoryCaptureGuard) Held(_ context.Context, trainerID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[trainerID]
	return ok, nil
}

// Touch 进程内占用没有期限
func (g *MemoryCaptureGuard) Touch(context.Context, string) error {
	return nil
}

// DistributedLocker 带持有者标识的分布式锁
type DistributedLocker interface {
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Unlock 只有持有者能释放，锁不存在或属于他人时返回 redis.ErrLockNotHeld
	Unlock(ctx context.Context, key, owner string) error
	Refresh(ctx context.Context, key, owner string, ttl time.Duration) error
	IsLocked(ctx context.Context, key string) (bool, error)
}

// redisLocker 基于 pkg/database/redis 的 SET NX PX 锁
type redisLocker struct {
	client *redis.Client
}

// NewRedisLocker 适配 Redis 客户端
func NewRedisLocker(client *redis.Client) DistributedLocker {
	return &redisLocker{client: client}
}

func (l *redisLocker) TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return redis.NewLockWithValue(l.client, key, owner, ttl).TryLock(ctx)
}

func (l *redisLocker) Unlock(ctx context.Context, key, owner string) error {
	return redis.NewLockWithValue(l.client, key, owner, 0).Unlock(ctx)
}

func (l *redisLocker) Refresh(ctx context.Context, key, owner string, ttl time.Duration) error {
	return redis.NewLockWithValue(l.client, key, owner, ttl).Refresh(ctx)
}

func (l *redisLocker) IsLocked(ctx context.Context, key string) (bool, error) {
	return l.client.IsLocked(ctx, key)
}

// RedisCaptureGuard 跨进程守卫，持有者为当前进程的实例 ID
type RedisCaptureGuard struct {
	locker  DistributedLocker
	owner   string
	prefix  string
	ttl     time.Duration
	logger  logger.Logger
	metrics *metrics.EncounterMetrics
}

var _ CaptureGuard = (*RedisCaptureGuard)(nil)

// NewRedisCaptureGuard 创建跨进程守卫
func NewRedisCaptureGuard(
	locker DistributedLocker,
	owner string,
	cfg *GuardConfig,
	l logger.Logger,
	m *metrics.EncounterMetrics,
) *RedisCaptureGuard {
	defaults := DefaultGuardConfig()
	if cfg == nil {
		cfg = defaults
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaults.KeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaults.TTL
	}
	return &RedisCaptureGuard{
		locker:  locker,
		owner:   owner,
		prefix:  prefix,
		ttl:     ttl,
		logger:  l.Named("manager.guard"),
		metrics: m,
	}
}

func (g *RedisCaptureGuard) key(trainerID string) string {
	return g.prefix + trainerID
}

// Acquire 占用
func (g *RedisCaptureGuard) Acquire(ctx context.Context, trainerID string) (bool, error) {
	ok, err := g.locker.TryLock(ctx, g.key(trainerID), g.owner, g.ttl)
	if err != nil {
		g.logger.Error("failed to acquire capture guard",
			"trainer_id", trainerID,
			"error", err,
		)
		return false, errors.Wrap(err, "failed to acquire capture guard")
	}
	if !ok {
		g.metrics.RecordGuardConflict()
	}
	return ok, nil
}

// Release 释放，锁已过期或不属于本进程时视为已释放
func (g *RedisCaptureGuard) Release(ctx context.Context, trainerID string) error {
	err := g.locker.Unlock(ctx, g.key(trainerID), g.owner)
	if err == nil || errors.Is(err, redis.ErrLockNotHeld) {
		return nil
	}
	g.logger.Warn("failed to release capture guard",
		"trainer_id", trainerID,
		"error", err,
	)
	return errors.Wrap(err, "failed to release capture guard")
}

// Held 是否被占用
func (g *RedisCaptureGuard) Held(ctx context.Context, trainerID string) (bool, error) {
	ok, err := g.locker.IsLocked(ctx, g.key(trainerID))
	if err != nil {
		return false, errors.Wrap(err, "failed to check capture guard")
	}
	return ok, nil
}

// Touch 延长占用期限
func (g *RedisCaptureGuard) Touch(ctx context.Context, trainerID string) error {
	if err := g.locker.Refresh(ctx, g.key(trainerID), g.owner, g.ttl); err != nil {
		return errors.Wrap(err, "failed to refresh capture guard")
	}
	return nil
}
