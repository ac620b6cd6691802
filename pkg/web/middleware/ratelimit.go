package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/pkg/cache/lru"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/errors"
	"golang.org/x/time/rate"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	Burst             int      `mapstructure:"burst"`
	SkipPaths         []string `mapstructure:"skip_paths"`

	// WaitMode 为 true 时排队等待，最长 WaitTimeout；否则直接拒绝
	WaitMode    bool          `mapstructure:"wait_mode"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`

	MaxLimiters     int           `mapstructure:"max_limiters"`
	LimiterTTL      time.Duration `mapstructure:"limiter_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// KeyFunc 限流键，默认按客户端 IP；返回空串时使用全局限流器
	KeyFunc func(*gin.Context) string `mapstructure:"-"`
}

// RateLimiter 按键限流，每个键一个令牌桶，桶保存在 LRU 中
type RateLimiter struct {
	cfg      RateLimitConfig
	global   *rate.Limiter
	limiters *lru.LRU[string, *rate.Limiter]
	logger   logger.Logger
}

// NewRateLimiter 创建限流器
func NewRateLimiter(l logger.Logger, cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.MaxLimiters <= 0 {
		cfg.MaxLimiters = 10000
	}
	if cfg.LimiterTTL <= 0 {
		cfg.LimiterTTL = 10 * time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return "ip:" + c.ClientIP() }
	}

	return &RateLimiter{
		cfg:    cfg,
		global: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		limiters: lru.New[string, *rate.Limiter](&lru.Config{
			MaxSize:         cfg.MaxLimiters,
			DefaultTTL:      cfg.LimiterTTL,
			CleanupInterval: cfg.CleanupInterval,
		}),
		logger: l,
	}
}

// Allow 是否放行
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

// Wait 阻塞直到放行或 ctx 结束
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.limiter(key).Wait(ctx)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if key == "" {
		return rl.global
	}
	return rl.limiters.GetOrCreate(key, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)
	})
}

// Close 停止 LRU 清理
func (rl *RateLimiter) Close() error {
	return rl.limiters.Close()
}

// RateLimit 限流中间件
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(rl.cfg.SkipPaths))
	for _, p := range rl.cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		key := rl.cfg.KeyFunc(c)
		if rl.cfg.WaitMode {
			ctx := c.Request.Context()
			if rl.cfg.WaitTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, rl.cfg.WaitTimeout)
				defer cancel()
			}
			if err := rl.Wait(ctx, key); err != nil {
				rl.logger.WarnContext(c.Request.Context(), "rate limit wait timeout", "key", key, "path", c.Request.URL.Path, "error", err)
				abortRateLimited(c)
				return
			}
		} else if !rl.Allow(key) {
			rl.logger.WarnContext(c.Request.Context(), "rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			abortRateLimited(c)
			return
		}
		c.Next()
	}
}

func abortRateLimited(c *gin.Context) {
	c.Header("Retry-After", strconv.Itoa(1))
	c.AbortWithStatusJSON(errors.CodeToStatus(errors.CodeRateLimited), gin.H{
		"code":    errors.CodeRateLimited,
		"message": "too many requests",
		"data":    nil,
	})
}
