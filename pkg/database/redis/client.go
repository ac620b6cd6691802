package redis

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient 用到的 go-redis 命令子集，单机、主从、集群客户端都实现它
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Client Redis 客户端，写走主节点，读在从节点间负载均衡
type Client struct {
	master     redisClient
	slaves     []redisClient
	cfg        *Config
	slaveIndex atomic.Uint64
}

// NewClient 创建 Redis 客户端，不会主动建立连接
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	switch {
	case cfg.IsCluster():
		c.master = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           cfg.Cluster.Addrs,
			Password:        cfg.Cluster.Password,
			MaxIdleConns:    cfg.Pool.MaxIdleConns,
			ConnMaxLifetime: cfg.Pool.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Pool.ConnMaxIdleTime,
			DialTimeout:     cfg.Pool.DialTimeout,
			ReadTimeout:     cfg.Pool.ReadTimeout,
			WriteTimeout:    cfg.Pool.WriteTimeout,
			PoolTimeout:     cfg.Pool.PoolTimeout,
		})
	case cfg.IsMasterSlave():
		c.master = redis.NewClient(cfg.nodeOptions(cfg.Master))
		for i := range cfg.Slaves {
			c.slaves = append(c.slaves, redis.NewClient(cfg.nodeOptions(&cfg.Slaves[i])))
		}
	default:
		c.master = redis.NewClient(cfg.nodeOptions(cfg.Standalone))
	}
	return c, nil
}

func (c *Config) nodeOptions(n *NodeConfig) *redis.Options {
	return &redis.Options{
		Addr:            n.Host + ":" + strconv.Itoa(n.Port),
		Password:        n.Password,
		DB:              n.DB,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		MaxActiveConns:  c.Pool.MaxOpenConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: c.Pool.ConnMaxIdleTime,
		DialTimeout:     c.Pool.DialTimeout,
		ReadTimeout:     c.Pool.ReadTimeout,
		WriteTimeout:    c.Pool.WriteTimeout,
		PoolTimeout:     c.Pool.PoolTimeout,
	}
}

func (c *Client) getMaster() redisClient {
	return c.master
}

func (c *Client) getSlave() redisClient {
	if len(c.slaves) == 0 {
		return c.master
	}
	if c.cfg.SlaveLoadBalance == "round_robin" {
		return c.slaves[c.slaveIndex.Add(1)%uint64(len(c.slaves))]
	}
	return c.slaves[rand.IntN(len(c.slaves))]
}

// Ping 检查所有节点
func (c *Client) Ping(ctx context.Context) error {
	if err := c.master.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("master ping failed: %w", err)
	}
	for i, slave := range c.slaves {
		if err := slave.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("slave[%d] ping failed: %w", i, err)
		}
	}
	return nil
}

// Close 关闭所有节点连接
func (c *Client) Close() error {
	errs := []error{c.master.Close()}
	for _, slave := range c.slaves {
		errs = append(errs, slave.Close())
	}
	return errors.Join(errs...)
}
