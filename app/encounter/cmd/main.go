package main

import (
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/catalog"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/manager"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/repository"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/rules"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/service"
	"github.com/lk2023060901/xdooria-encounter/pkg/app"
	"github.com/lk2023060901/xdooria-encounter/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-encounter/pkg/database/redis"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/mq/kafka"
	"github.com/lk2023060901/xdooria-encounter/pkg/otel"
	"github.com/lk2023060901/xdooria-encounter/pkg/prometheus"
	"github.com/lk2023060901/xdooria-encounter/pkg/sentry"
	"github.com/lk2023060901/xdooria-encounter/pkg/web"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/middleware"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/validator"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// StorageConfig 持久化与缓存配置
type StorageConfig struct {
	// Driver postgres 或 memory，memory 只用于本地调试，重启后数据丢失
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=postgres memory"`

	// RemoteCache 为 true 时使用 Redis 作为第二级缓存
	RemoteCache bool                   `mapstructure:"remote_cache"`
	CachePrefix string                 `mapstructure:"cache_prefix"`
	Cache       repository.CacheConfig `mapstructure:"cache"`
}

// EventsConfig 结果事件配置，brokers 为空时不投递
type EventsConfig struct {
	Topic string       `mapstructure:"topic"`
	Kafka kafka.Config `mapstructure:"kafka"`
}

// IDGenConfig 遭遇 ID 生成配置
type IDGenConfig struct {
	MachineID uint16 `mapstructure:"machine_id"`
}

// Config 定义 Encounter 服务的完整配置结构
type Config struct {
	Log     logger.Config             `mapstructure:"log"`
	Loggers map[string]*logger.Config `mapstructure:"loggers"`

	// HTTP 服务
	Server    web.Config                 `mapstructure:"server"`
	RateLimit middleware.RateLimitConfig `mapstructure:"rate_limit"`

	// 数据与缓存
	Storage  StorageConfig   `mapstructure:"storage"`
	Database postgres.Config `mapstructure:"database"`
	Redis    redis.Config    `mapstructure:"redis"`

	// 游戏数据
	Catalog catalog.Config        `mapstructure:"catalog"`
	Rules   rules.SourceConfig    `mapstructure:"rules"`
	Guard   manager.GuardConfig   `mapstructure:"guard"`
	Janitor manager.JanitorConfig `mapstructure:"janitor"`

	// 异步经验
	Experience service.WorkerConfig `mapstructure:"experience"`

	Events EventsConfig `mapstructure:"events"`
	IDGen  IDGenConfig  `mapstructure:"idgen"`

	// Prometheus 配置
	Prometheus prometheus.Config `mapstructure:"prometheus"`

	// 指标配置
	Metrics metrics.Config `mapstructure:"metrics"`

	// 链路追踪与错误上报
	Tracing otel.Config   `mapstructure:"tracing"`
	Sentry  sentry.Config `mapstructure:"sentry"`
}

func main() {
	var cfg Config

	// 1. 加载配置
	if err := app.LoadConfig(&cfg); err != nil {
		panic(err)
	}

	// 2. 初始化主日志
	l, err := logger.New(&cfg.Log)
	if err != nil {
		panic(err)
	}
	defer l.Sync()

	// 3. 注册校验规则
	if err := validator.Init(); err != nil {
		l.Error("failed to register validators", "error", err)
		return
	}

	// 4. 通过 Wire 初始化应用
	application, cleanup, err := InitApp(&cfg, l)
	if err != nil {
		l.Error("failed to initialize application", "error", err)
		return
	}
	defer cleanup()

	// 5. 运行服务
	if err := application.Run(); err != nil {
		l.Error("application exited with error", "error", err)
	}
}
