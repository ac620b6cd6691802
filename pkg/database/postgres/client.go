package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// Client PostgreSQL 客户端
// 写操作与事务走主库，读操作在从库间负载均衡，没有从库时全部走主库
type Client struct {
	master *pgxpool.Pool
	slaves []*pgxpool.Pool
	cfg    *Config
	logger logger.Logger

	slaveIndex atomic.Uint64
}

// New 创建客户端并检查连通性
func New(cfg *Config, l logger.Logger) (*Client, error) {
	newCfg, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Default()
	}

	c := &Client{cfg: newCfg, logger: l.Named("postgres")}

	if newCfg.IsStandaloneMode() {
		if c.master, err = createPool(newCfg, newCfg.Standalone); err != nil {
			return nil, fmt.Errorf("failed to create standalone pool: %w", err)
		}
		return c, nil
	}

	if c.master, err = createPool(newCfg, newCfg.Master); err != nil {
		return nil, fmt.Errorf("failed to create master pool: %w", err)
	}
	for i := range newCfg.Slaves {
		pool, err := createPool(newCfg, &newCfg.Slaves[i])
		if err != nil {
			// 从库不可用不阻止启动
			c.logger.Warn("failed to create slave pool", "index", i, "host", newCfg.Slaves[i].Host, "error", err)
			continue
		}
		c.slaves = append(c.slaves, pool)
	}
	return c, nil
}

func (c *Client) getMaster() *pgxpool.Pool {
	return c.master
}

func (c *Client) getSlave() *pgxpool.Pool {
	if len(c.slaves) == 0 {
		return c.master
	}
	if c.cfg.SlaveLoadBalance == "random" {
		return c.slaves[rand.IntN(len(c.slaves))]
	}
	idx := c.slaveIndex.Add(1)
	return c.slaves[idx%uint64(len(c.slaves))]
}

// Ping 检查主库，从库失败仅记录日志
func (c *Client) Ping(ctx context.Context) error {
	if err := c.master.Ping(ctx); err != nil {
		return fmt.Errorf("master ping failed: %w", err)
	}
	for i, slave := range c.slaves {
		if err := slave.Ping(ctx); err != nil {
			c.logger.Warn("slave ping failed", "index", i, "error", err)
		}
	}
	return nil
}

// Close 关闭所有连接池
func (c *Client) Close() error {
	if c.master != nil {
		c.master.Close()
	}
	for _, slave := range c.slaves {
		slave.Close()
	}
	return nil
}

// PoolStats 主库连接池概况
type PoolStats struct {
	AcquiredConns int32
	IdleConns     int32
	TotalConns    int32
	MaxConns      int32
}

// Stats 主库连接池状态
func (c *Client) Stats() PoolStats {
	s := c.master.Stat()
	return PoolStats{
		AcquiredConns: s.AcquiredConns(),
		IdleConns:     s.IdleConns(),
		TotalConns:    s.TotalConns(),
		MaxConns:      s.MaxConns(),
	}
}

func createPool(cfg *Config, dbCfg *DBConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbCfg.connString(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	poolConfig.MaxConns = cfg.Pool.MaxConns
	poolConfig.MinConns = cfg.Pool.MinConns
	poolConfig.MaxConnLifetime = cfg.Pool.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Pool.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.Pool.HealthCheckPeriod

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(fmt.Errorf("failed to ping %s:%d", dbCfg.Host, dbCfg.Port), err)
	}
	return pool, nil
}
