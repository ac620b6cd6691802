//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/handler"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/manager"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/service"
	"github.com/lk2023060901/xdooria-encounter/pkg/app"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/prometheus"
)

func InitApp(cfg *Config, l logger.Logger) (app.Application, func(), error) {
	panic(wire.Build(
		// 1. 基础框架 (BaseApp)
		app.ProviderSet,

		// 2. 指标收集
		provideMetricsConfig,
		metrics.New,
		provideHTTPMetrics,

		// 3. 存储：PostgreSQL 或内存
		providePostgresClient,
		provideStores,

		// 4. Redis 与远程缓存
		provideRedisClient,
		provideCacheStore,
		provideCacheConfig,

		// 5. 仓储层 (Repository)
		provideTrainerRepository,
		provideCreatureRepository,

		// 6. 游戏数据与随机源
		provideCatalog,
		provideRules,
		provideClock,
		provideRoller,
		provideIDGenerator,

		// 7. 管理层 (Manager)
		provideCaptureGuard,
		manager.NewSessionManager,
		provideJanitorConfig,
		manager.NewSessionJanitor,
		wire.Bind(new(manager.Sweeper), new(*service.CaptureService)),

		// 8. 事件发布
		providePublisher,

		// 9. 服务层 (Service)
		service.NewLedgerService,
		service.NewStatService,
		service.NewSpawnService,
		service.NewCaptureService,
		service.NewTrainerService,
		service.NewShopService,
		provideWorkerConfig,
		service.NewExperienceService,

		// 10. 接口层 (Handler)
		handler.NewTrainerHandler,
		handler.NewEncounterHandler,
		handler.NewShopHandler,
		provideRateLimiter,
		handler.NewRouter,

		// 11. 链路追踪与错误上报
		provideTracerProvider,
		provideSentry,

		// 12. HTTP 与 Prometheus
		providePrometheusConfig,
		prometheus.New,
		provideWebServer,

		// 13. 组装与应用配置
		provideAppOptions,
		provideAppComponents,
		app.InitApp,
	))
}
