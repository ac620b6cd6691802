package main

import (
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/catalog"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/event"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/handler"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/manager"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/memstore"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/repository"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/rules"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/service"
	"github.com/lk2023060901/xdooria-encounter/pkg/app"
	"github.com/lk2023060901/xdooria-encounter/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-encounter/pkg/database/redis"
	"github.com/lk2023060901/xdooria-encounter/pkg/idgen"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/mq/kafka"
	"github.com/lk2023060901/xdooria-encounter/pkg/otel"
	"github.com/lk2023060901/xdooria-encounter/pkg/prometheus"
	"github.com/lk2023060901/xdooria-encounter/pkg/sentry"
	"github.com/lk2023060901/xdooria-encounter/pkg/web"
	webmetrics "github.com/lk2023060901/xdooria-encounter/pkg/web/metrics"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/middleware"
)

// storeSet 三类持久化接口的同一实现
type storeSet struct {
	trainers  dao.TrainerStore
	creatures dao.CreatureStore
	sequences dao.SequenceStore
}

// providePostgresClient memory 驱动下返回 nil
func providePostgresClient(cfg *Config, l logger.Logger) (*postgres.Client, error) {
	if cfg.Storage.Driver == StorageDriverMemory {
		l.Warn("using in-memory storage, data will be lost on restart")
		return nil, nil
	}
	return postgres.New(&cfg.Database, l)
}

// provideStores 按驱动选择 DAO 或内存实现
func provideStores(db *postgres.Client, l logger.Logger, m *metrics.EncounterMetrics) *storeSet {
	if db == nil {
		s := memstore.New()
		return &storeSet{trainers: s, creatures: s, sequences: s}
	}
	return &storeSet{
		trainers:  dao.NewTrainerDAO(db, l, m),
		creatures: dao.NewCreatureDAO(db, l, m),
		sequences: dao.NewSequenceDAO(db, l, m),
	}
}

// provideRedisClient 只有远程缓存或 redis 守卫需要时才连接
func provideRedisClient(cfg *Config) (*redis.Client, error) {
	if !cfg.Storage.RemoteCache && cfg.Guard.Backend != manager.GuardBackendRedis {
		return nil, nil
	}
	return redis.NewClient(&cfg.Redis)
}

// provideCacheStore 未启用远程缓存时返回 nil，仓储只使用进程内缓存
func provideCacheStore(cfg *Config, client *redis.Client, l logger.Logger) dao.CacheStore {
	if !cfg.Storage.RemoteCache || client == nil {
		return nil
	}
	return dao.NewCacheDAO(client, cfg.Storage.CachePrefix, l)
}

// provideCacheConfig 提供缓存配置
// redis 守卫意味着多进程部署，此时关闭进程内一级，避免读到其他进程写入前的旧值
func provideCacheConfig(cfg *Config, l logger.Logger) *repository.CacheConfig {
	cc := cfg.Storage.Cache
	if cfg.Guard.Backend == manager.GuardBackendRedis && !cc.DisableLocal {
		l.Info("multi-process deployment, local record cache disabled")
		cc.DisableLocal = true
	}
	return &cc
}

// provideTrainerRepository 提供训练师仓储
func provideTrainerRepository(
	stores *storeSet,
	remote dao.CacheStore,
	cfg *repository.CacheConfig,
	l logger.Logger,
	m *metrics.EncounterMetrics,
) (repository.TrainerRepository, error) {
	return repository.NewTrainerRepository(stores.trainers, remote, cfg, l, m)
}

// provideCreatureRepository 提供个体仓储
func provideCreatureRepository(
	stores *storeSet,
	remote dao.CacheStore,
	cfg *repository.CacheConfig,
	l logger.Logger,
	m *metrics.EncounterMetrics,
) (repository.CreatureRepository, error) {
	return repository.NewCreatureRepository(stores.creatures, stores.sequences, remote, cfg, l, m)
}

// provideCaptureGuard 按配置选择进程内或 Redis 守卫
func provideCaptureGuard(
	cfg *Config,
	client *redis.Client,
	l logger.Logger,
	m *metrics.EncounterMetrics,
) (manager.CaptureGuard, error) {
	if cfg.Guard.Backend != manager.GuardBackendRedis {
		return manager.NewMemoryCaptureGuard(m), nil
	}
	if client == nil {
		return nil, errors.New("redis guard requires a redis client")
	}
	if cfg.Guard.TTL > 0 && cfg.Guard.TTL <= cfg.Janitor.Interval {
		l.Warn("guard ttl is not longer than the janitor interval",
			"ttl", cfg.Guard.TTL,
			"interval", cfg.Janitor.Interval,
		)
	}
	return manager.NewRedisCaptureGuard(manager.NewRedisLocker(client), uuid.NewString(), &cfg.Guard, l, m), nil
}

// providePublisher 未配置 broker 时不投递事件
func providePublisher(cfg *Config, l logger.Logger, m *metrics.EncounterMetrics) (event.Publisher, error) {
	if len(cfg.Events.Kafka.Brokers) == 0 {
		l.Info("no kafka brokers configured, outcome events are discarded")
		return event.NoopPublisher{}, nil
	}

	kcfg := kafka.DefaultConfig()
	kcfg.Brokers = cfg.Events.Kafka.Brokers
	kcfg.SASL = cfg.Events.Kafka.SASL
	kcfg.TLS = cfg.Events.Kafka.TLS
	if cfg.Events.Kafka.Producer.BatchSize > 0 {
		kcfg.Producer = cfg.Events.Kafka.Producer
	}

	topic := cfg.Events.Topic
	if topic == "" {
		topic = event.OutcomeType
	}
	producer, err := kafka.NewProducer(kcfg, topic, l,
		kafka.RecoveryMiddleware(),
		kafka.RequestIDMiddleware(),
		kafka.LoggingMiddleware(l.Named("kafka.publish")),
	)
	if err != nil {
		return nil, err
	}
	return event.NewKafkaPublisher(producer, l, m), nil
}

// provideIDGenerator 提供遭遇 ID 生成器
func provideIDGenerator(cfg *Config) (idgen.Generator, error) {
	return idgen.NewSonyflake(cfg.IDGen.MachineID)
}

// provideRules 提供游戏数值，配置 watch 时热加载
func provideRules(cfg *Config, l logger.Logger) (rules.Provider, error) {
	return rules.NewProvider(&cfg.Rules, l)
}

// provideCatalog 加载物种表
func provideCatalog(cfg *Config) (catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return nil, errors.New("catalog.path is required")
	}
	return catalog.LoadFile(cfg.Catalog.Path)
}

// provideClock 提供真实时钟
func provideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// provideRoller 提供随机源
func provideRoller() service.Roller {
	return service.NewRoller(time.Now().UnixNano())
}

// provideWorkerConfig 提供经验任务池配置
func provideWorkerConfig(cfg *Config) *service.WorkerConfig {
	return &cfg.Experience
}

// provideJanitorConfig 提供超时清理配置
func provideJanitorConfig(cfg *Config) *manager.JanitorConfig {
	return &cfg.Janitor
}

// provideMetricsConfig 提供指标配置
func provideMetricsConfig(cfg *Config) *metrics.Config {
	return &cfg.Metrics
}

// providePrometheusConfig 提供 Prometheus 配置
func providePrometheusConfig(cfg *Config) *prometheus.Config {
	return &cfg.Prometheus
}

// provideHTTPMetrics HTTP 指标与业务指标使用同一命名空间
func provideHTTPMetrics(m *metrics.EncounterMetrics) *webmetrics.HTTPMetrics {
	return webmetrics.New(m.GetConfig().Namespace)
}

// provideRateLimiter 未启用时返回 nil
func provideRateLimiter(cfg *Config, l logger.Logger) *middleware.RateLimiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	rc := cfg.RateLimit
	rc.KeyFunc = handler.TrainerKey
	return middleware.NewRateLimiter(l.Named("web.ratelimit"), rc)
}

// provideTracerProvider 创建追踪提供者并设置为全局，未启用时不导出 span
func provideTracerProvider(cfg *Config, l logger.Logger) (*otel.TracerProvider, error) {
	tc := cfg.Tracing
	if tc.ServiceName == "" {
		tc.ServiceName = app.AppName
	}
	tp, err := otel.New(&tc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tracer provider")
	}
	if tp.IsEnabled() {
		l.Info("tracing enabled",
			"exporter", tc.ExporterType,
			"endpoint", tc.Endpoint,
		)
	}
	return tp, nil
}

// provideSentry 创建 Sentry 客户端并设为默认客户端，DSN 为空时不上报
func provideSentry(cfg *Config, l logger.Logger) (*sentry.Client, error) {
	client, err := sentry.New(&cfg.Sentry)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sentry client")
	}
	if !client.Enabled() {
		l.Info("sentry dsn not configured, error reporting disabled")
	}
	sentry.SetDefault(client)
	return client, nil
}

// provideWebServer 创建 HTTP 服务并注册业务路由
// 依赖 tracer provider 与 sentry，保证中间件取到的是已初始化的全局实例
func provideWebServer(
	cfg *Config,
	l logger.Logger,
	hm *webmetrics.HTTPMetrics,
	router *handler.Router,
	promClient *prometheus.Client,
	tp *otel.TracerProvider,
	_ *sentry.Client,
) *web.Server {
	if cfg.Server.Tracing && !tp.IsEnabled() {
		l.Warn("server.tracing is set but tracing is disabled, spans are dropped")
	}
	srv := web.NewServer(&cfg.Server, l, hm)
	router.Register(srv.Router())

	// 未单独开放指标端口时挂在业务端口上
	if !cfg.Prometheus.HTTPServer.Enabled {
		path := cfg.Prometheus.HTTPServer.Path
		if path == "" {
			path = "/metrics"
		}
		srv.Router().GET(path, gin.WrapH(promClient.Handler()))
	}
	return srv
}

// provideAppOptions 提供应用选项
func provideAppOptions(cfg *Config, l logger.Logger) []app.Option {
	return []app.Option{
		app.WithName(app.AppName),
		app.WithLogger(l),
		app.WithNamedLoggers(cfg.Loggers),
		app.WithStopTimeout(cfg.Server.ShutdownTimeout),
	}
}

// provideAppComponents 提供应用组件
func provideAppComponents(
	webServer *web.Server,
	janitor *manager.SessionJanitor,
	promClient *prometheus.Client,
	encounterMetrics *metrics.EncounterMetrics,
	httpMetrics *webmetrics.HTTPMetrics,
	experience *service.ExperienceService,
	publisher event.Publisher,
	limiter *middleware.RateLimiter,
	rp rules.Provider,
	db *postgres.Client,
	redisClient *redis.Client,
	tp *otel.TracerProvider,
	sentryClient *sentry.Client,
) (app.AppComponents, error) {
	// 注册指标到 Prometheus
	if err := encounterMetrics.Register(promClient.Registry()); err != nil {
		return app.AppComponents{}, errors.Wrap(err, "failed to register encounter metrics")
	}
	if err := httpMetrics.Register(promClient.Registry()); err != nil {
		return app.AppComponents{}, errors.Wrap(err, "failed to register http metrics")
	}

	servers := []app.Server{webServer, janitor, promClient}

	// 按依赖的逆序关闭：先停异步任务与事件，再关存储，最后刷出 span 与错误事件
	closers := []app.Closer{sentryClient, tp}
	if db != nil {
		closers = append(closers, db)
	}
	if redisClient != nil {
		closers = append(closers, redisClient)
	}
	if c, ok := rp.(io.Closer); ok {
		closers = append(closers, c)
	}
	if limiter != nil {
		closers = append(closers, limiter)
	}
	closers = append(closers, publisher, experience)

	return app.AppComponents{
		Servers: servers,
		Closers: closers,
	}, nil
}
