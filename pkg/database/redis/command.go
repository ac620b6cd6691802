package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Get 读取字符串值，键不存在返回 ErrNil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.getSlave().Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNil
		}
		return "", fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}

// MGet 批量读取，返回值与 keys 一一对应，缺失的键为 nil
// 集群模式下键可能跨槽，逐个 GET
func (c *Client) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	out := make([]*string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	if c.cfg.IsCluster() {
		for i, key := range keys {
			val, err := c.Get(ctx, key)
			if errors.Is(err, ErrNil) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out[i] = &val
		}
		return out, nil
	}

	vals, err := c.getSlave().MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget failed: %w", err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = &s
		}
	}
	return out, nil
}

// Set 写入字符串值，expiration 为 0 表示不过期
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.getMaster().Set(ctx, key, value, expiration).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// SetNX 仅当键不存在时写入
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	ok, err := c.getMaster().SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// Del 删除键，返回删除数量
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.getMaster().Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("del failed: %w", err)
	}
	return n, nil
}

// Exists 统计存在的键数量，读主节点
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.getMaster().Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("exists failed: %w", err)
	}
	return n, nil
}

// Eval 在主节点执行 Lua 脚本
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	val, err := c.getMaster().Eval(ctx, script, keys, args...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("eval failed: %w", err)
	}
	return val, nil
}
