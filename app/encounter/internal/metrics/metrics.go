package metrics

import (
	"fmt"
	"time"

	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"github.com/lk2023060901/xdooria-encounter/pkg/metrics/sliding"
	"github.com/prometheus/client_golang/prometheus"
)

// Config 指标配置
type Config struct {
	Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace"`
	// SlidingWindow 会话操作的近实时统计窗口
	SlidingWindow sliding.WindowConfig `mapstructure:"sliding_window" json:"sliding_window" yaml:"sliding_window"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Namespace:     "encounter",
		SlidingWindow: *sliding.DefaultWindowConfig(),
	}
}

// EncounterMetrics 遭遇服务指标
// 所有 Record 方法允许 nil 接收者，测试中可以不创建指标
type EncounterMetrics struct {
	config *Config

	// 会话指标
	EncountersStarted prometheus.Counter       // 成功开启的遭遇数
	Outcomes          *prometheus.CounterVec   // 终止结果（按结果、原因）
	Throws            *prometheus.CounterVec   // 投掷次数（按道具、结果）
	Rejections        *prometheus.CounterVec   // 拒绝次数（按原因）
	OpenSessions      prometheus.Gauge         // 当前开启的会话数
	GuardConflicts    prometheus.Counter       // 并发守卫冲突
	ActionDuration    *prometheus.HistogramVec // 会话操作耗时

	// 数据库指标
	DBQueryTotal    *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec

	// 缓存指标
	CacheHitTotal  *prometheus.CounterVec // 按缓存层级 memory/redis
	CacheMissTotal *prometheus.CounterVec

	// 事件与异步任务
	EventsPublished *prometheus.CounterVec
	XPGrants        *prometheus.CounterVec

	window *sliding.Window
}

// New 创建指标
func New(cfg *Config) (*EncounterMetrics, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge metrics config: %w", err)
	}

	window, err := sliding.NewWindow(&newCfg.SlidingWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to create sliding window: %w", err)
	}

	ns := newCfg.Namespace
	m := &EncounterMetrics{
		config: newCfg,
		window: window,

		EncountersStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "encounters_started_total",
			Help:      "开启的遭遇总数",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "encounter_outcomes_total",
			Help:      "遭遇终止结果总数",
		}, []string{"kind", "reason"}),
		Throws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "throws_total",
			Help:      "道具投掷总数",
		}, []string{"device", "result"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rejections_total",
			Help:      "被拒绝的操作总数",
		}, []string{"reason"}),
		OpenSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "open_sessions",
			Help:      "当前开启的捕获会话数",
		}),
		GuardConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "guard_conflicts_total",
			Help:      "并发守卫拒绝次数",
		}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "action_duration_seconds",
			Help:      "会话操作耗时（秒）",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"action"}),

		DBQueryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "db_queries_total",
			Help:      "数据库查询总数",
		}, []string{"operation", "result"}),
		DBQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "db_query_duration_seconds",
			Help:      "数据库查询延迟（秒）",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),

		CacheHitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_hits_total",
			Help:      "缓存命中总数",
		}, []string{"tier"}),
		CacheMissTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_misses_total",
			Help:      "缓存未命中总数",
		}, []string{"tier"}),

		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_published_total",
			Help:      "发布的结果事件总数",
		}, []string{"result"}),
		XPGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "xp_grants_total",
			Help:      "被动经验发放次数",
		}, []string{"result"}),
	}
	return m, nil
}

// Register 注册指标到 Prometheus Registry
func (m *EncounterMetrics) Register(registerer prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.EncountersStarted,
		m.Outcomes,
		m.Throws,
		m.Rejections,
		m.OpenSessions,
		m.GuardConflicts,
		m.ActionDuration,
		m.DBQueryTotal,
		m.DBQueryDuration,
		m.CacheHitTotal,
		m.CacheMissTotal,
		m.EventsPublished,
		m.XPGrants,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

// RecordEncounterStarted 记录开启遭遇
func (m *EncounterMetrics) RecordEncounterStarted() {
	if m == nil {
		return
	}
	m.EncountersStarted.Inc()
	m.OpenSessions.Inc()
}

// RecordOutcome 记录终止结果，同时减少开启会话数
func (m *EncounterMetrics) RecordOutcome(kind, reason string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(kind, reason).Inc()
	m.OpenSessions.Dec()
}

// RecordThrow 记录投掷，result 为 caught/fled/retry
func (m *EncounterMetrics) RecordThrow(device, result string) {
	if m == nil {
		return
	}
	m.Throws.WithLabelValues(device, result).Inc()
}

// RecordRejection 记录拒绝
func (m *EncounterMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(reason).Inc()
}

// RecordGuardConflict 记录守卫冲突
func (m *EncounterMetrics) RecordGuardConflict() {
	if m == nil {
		return
	}
	m.GuardConflicts.Inc()
}

// RecordAction 记录会话操作耗时
func (m *EncounterMetrics) RecordAction(action string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.ActionDuration.WithLabelValues(action).Observe(duration.Seconds())
	m.window.Record(duration, success)
}

// RecordDBQuery 记录数据库查询
func (m *EncounterMetrics) RecordDBQuery(operation string, success bool, duration float64) {
	if m == nil {
		return
	}
	m.DBQueryTotal.WithLabelValues(operation, result(success)).Inc()
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCacheHit 记录缓存命中
func (m *EncounterMetrics) RecordCacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHitTotal.WithLabelValues(tier).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *EncounterMetrics) RecordCacheMiss(tier string) {
	if m == nil {
		return
	}
	m.CacheMissTotal.WithLabelValues(tier).Inc()
}

// RecordEventPublished 记录事件发布
func (m *EncounterMetrics) RecordEventPublished(success bool) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(result(success)).Inc()
}

// RecordXPGrant 记录被动经验
func (m *EncounterMetrics) RecordXPGrant(success bool) {
	if m == nil {
		return
	}
	m.XPGrants.WithLabelValues(result(success)).Inc()
}

// GetStats 最近窗口内的会话操作统计
func (m *EncounterMetrics) GetStats() sliding.Stats {
	if m == nil {
		return sliding.Stats{}
	}
	return m.window.GetStats()
}

// GetConfig 获取配置
func (m *EncounterMetrics) GetConfig() *Config {
	return m.config
}
