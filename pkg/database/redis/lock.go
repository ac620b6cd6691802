package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Second

const (
	unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

	refreshScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`
)

// Lock 单节点互斥锁，持有者由 value 标识
type Lock struct {
	client *Client
	key    string
	value  string
	ttl    time.Duration
}

// NewLock 创建锁，value 使用随机 UUID
func NewLock(client *Client, key string, ttl time.Duration) *Lock {
	return NewLockWithValue(client, key, uuid.NewString(), ttl)
}

// NewLockWithValue 使用调用方给定的持有者标识，便于跨进程释放
func NewLockWithValue(client *Client, key, value string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Lock{client: client, key: key, value: value, ttl: ttl}
}

// Key 锁的键
func (l *Lock) Key() string { return l.key }

// Value 持有者标识
func (l *Lock) Value() string { return l.value }

// TryLock 非阻塞地尝试获取锁
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to try lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Unlock 仅当仍由自己持有时删除锁，否则返回 ErrLockNotHeld
func (l *Lock) Unlock(ctx context.Context) error {
	return l.compareAndRun(ctx, unlockScript)
}

// Refresh 延长锁的过期时间
func (l *Lock) Refresh(ctx context.Context) error {
	return l.compareAndRun(ctx, refreshScript, l.ttl.Milliseconds())
}

func (l *Lock) compareAndRun(ctx context.Context, script string, extra ...interface{}) error {
	args := append([]interface{}{l.value}, extra...)
	res, err := l.client.Eval(ctx, script, []string{l.key}, args...)
	if err != nil {
		return fmt.Errorf("failed to run lock script on %s: %w", l.key, err)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// IsLocked 锁是否被任意持有者持有
func (c *Client) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := c.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check lock %s: %w", key, err)
	}
	return n > 0, nil
}
