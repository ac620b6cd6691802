// Package sliding 固定窗口分桶的近实时统计
package sliding

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-encounter/pkg/config"
)

// WindowConfig 滑动窗口配置
type WindowConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	// WindowSize 统计窗口长度
	WindowSize time.Duration `mapstructure:"window_size" json:"window_size" yaml:"window_size"`
	// BucketCount 窗口被等分的桶数
	BucketCount int `mapstructure:"bucket_count" json:"bucket_count" yaml:"bucket_count"`
}

// DefaultWindowConfig 默认 60 秒、每秒一桶
func DefaultWindowConfig() *WindowConfig {
	return &WindowConfig{
		Enabled:     true,
		WindowSize:  60 * time.Second,
		BucketCount: 60,
	}
}

type bucket struct {
	// slot 桶对应的绝对时间片序号，用于判断桶是否过期
	slot       int64
	count      int64
	failures   int64
	total      time.Duration
	minLatency time.Duration
	maxLatency time.Duration
}

// Window 滑动窗口统计器
// 桶按时间片惰性复用，不需要后台轮转协程
type Window struct {
	config WindowConfig
	clock  clockwork.Clock
	width  time.Duration

	mu      sync.Mutex
	buckets []bucket
}

// Option 窗口选项
type Option func(*Window)

// WithClock 替换时钟
func WithClock(clock clockwork.Clock) Option {
	return func(w *Window) { w.clock = clock }
}

// NewWindow 创建滑动窗口统计器
func NewWindow(cfg *WindowConfig, opts ...Option) (*Window, error) {
	merged, err := config.MergeConfig(DefaultWindowConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge window config: %w", err)
	}
	if merged.BucketCount <= 0 || merged.WindowSize < time.Duration(merged.BucketCount) {
		return nil, fmt.Errorf("invalid window: size %s with %d buckets", merged.WindowSize, merged.BucketCount)
	}

	w := &Window{
		config:  *merged,
		clock:   clockwork.NewRealClock(),
		width:   merged.WindowSize / time.Duration(merged.BucketCount),
		buckets: make([]bucket, merged.BucketCount),
	}
	for _, opt := range opts {
		opt(w)
	}
	for i := range w.buckets {
		w.buckets[i].slot = -1
	}
	return w, nil
}

func (w *Window) slotOf(t time.Time) int64 {
	return t.UnixNano() / int64(w.width)
}

// Record 记录一次操作
func (w *Window) Record(latency time.Duration, success bool) {
	if !w.config.Enabled {
		return
	}

	slot := w.slotOf(w.clock.Now())

	w.mu.Lock()
	defer w.mu.Unlock()

	b := &w.buckets[slot%int64(len(w.buckets))]
	if b.slot != slot {
		*b = bucket{slot: slot, minLatency: latency}
	}
	b.count++
	b.total += latency
	if !success {
		b.failures++
	}
	if latency < b.minLatency {
		b.minLatency = latency
	}
	if latency > b.maxLatency {
		b.maxLatency = latency
	}
}

// Stats 窗口内的统计结果
type Stats struct {
	QPS          float64       `json:"qps"`
	AvgLatency   time.Duration `json:"avg_latency"`
	MinLatency   time.Duration `json:"min_latency"`
	MaxLatency   time.Duration `json:"max_latency"`
	SuccessRate  float64       `json:"success_rate"`
	TotalCount   int64         `json:"total_count"`
	FailureCount int64         `json:"failure_count"`
}

// GetStats 汇总仍在窗口内的桶
func (w *Window) GetStats() Stats {
	now := w.slotOf(w.clock.Now())
	oldest := now - int64(len(w.buckets)) + 1

	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		stats Stats
		total time.Duration
		seen  bool
	)
	for _, b := range w.buckets {
		if b.slot < oldest || b.slot > now || b.count == 0 {
			continue
		}
		stats.TotalCount += b.count
		stats.FailureCount += b.failures
		total += b.total
		if !seen || b.minLatency < stats.MinLatency {
			stats.MinLatency = b.minLatency
		}
		if b.maxLatency > stats.MaxLatency {
			stats.MaxLatency = b.maxLatency
		}
		seen = true
	}

	stats.QPS = float64(stats.TotalCount) / w.config.WindowSize.Seconds()
	if stats.TotalCount > 0 {
		stats.AvgLatency = total / time.Duration(stats.TotalCount)
		stats.SuccessRate = float64(stats.TotalCount-stats.FailureCount) / float64(stats.TotalCount) * 100
	}
	return stats
}
