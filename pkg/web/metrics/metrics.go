package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics HTTP 层指标
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New 创建 HTTP 指标，namespace 为空时使用 "http"
func New(namespace string) *HTTPMetrics {
	if namespace == "" {
		namespace = "http"
	}
	return &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP 请求总数",
			},
			[]string{"path", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP 请求耗时（秒）",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
}

// Register 注册到指定注册器
func (m *HTTPMetrics) Register(registerer prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.RequestsTotal, m.RequestDuration} {
		if err := registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}
