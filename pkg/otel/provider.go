package otel

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider 追踪提供者，未启用时所有方法退化为全局 noop
type TracerProvider struct {
	config   *Config
	provider *sdktrace.TracerProvider
	closed   atomic.Bool
}

type options struct {
	exporter sdktrace.SpanExporter
	stdout   io.Writer
}

// Option 创建选项
type Option func(*options)

// WithExporter 使用给定导出器并同步导出，忽略 ExporterType
func WithExporter(e sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = e }
}

// WithStdout stdout 导出器的输出目标
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// New 创建追踪提供者并设置为全局 provider
func New(cfg *Config, opts ...Option) (*TracerProvider, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to merge otel config")
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	p := &TracerProvider{config: newCfg}
	if !newCfg.Enabled {
		return p, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var spanProcessor sdktrace.TracerProviderOption
	if o.exporter != nil {
		spanProcessor = sdktrace.WithSyncer(o.exporter)
	} else {
		exporter, err := createExporter(context.Background(), newCfg, o.stdout)
		if err != nil {
			return nil, err
		}
		if exporter == nil {
			return p, nil
		}
		spanProcessor = sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(newCfg.BatchExport.BatchTimeout),
			sdktrace.WithExportTimeout(newCfg.BatchExport.ExportTimeout),
			sdktrace.WithMaxExportBatchSize(newCfg.BatchExport.BatchSize),
			sdktrace.WithMaxQueueSize(newCfg.BatchExport.MaxQueueSize),
		)
	}

	p.provider = sdktrace.NewTracerProvider(
		spanProcessor,
		sdktrace.WithResource(createResource(newCfg)),
		sdktrace.WithSampler(createSampler(newCfg.Sampler)),
	)

	otel.SetTracerProvider(p.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func createResource(cfg *Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.NewSchemaless(attrs...)
}

func createSampler(cfg SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case SamplerTypeAlways:
		return sdktrace.AlwaysSample()
	case SamplerTypeNever:
		return sdktrace.NeverSample()
	case SamplerTypeRatio:
		return sdktrace.TraceIDRatioBased(cfg.Ratio)
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

// Tracer 获取指定名称的 Tracer
func (p *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.provider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return p.provider.Tracer(name, opts...)
}

// Shutdown 导出剩余 span 并关闭
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	if p.closed.Swap(true) {
		return ErrProviderClosed
	}
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// Close 使用配置的超时关闭，实现 app.Closer
func (p *TracerProvider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.ShutdownTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}

// ForceFlush 立即导出缓冲中的 span
func (p *TracerProvider) ForceFlush(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.ForceFlush(ctx)
}

// IsEnabled 是否有真实的导出器
func (p *TracerProvider) IsEnabled() bool {
	return p.provider != nil
}
