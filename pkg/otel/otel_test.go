package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestNewValidate 测试配置校验
func TestNewValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{"disabled skips validation", &Config{ServiceName: "", Sampler: SamplerConfig{Type: SamplerTypeRatio, Ratio: 2}}, nil},
		{"ratio out of range", &Config{Enabled: true, ExporterType: ExporterTypeNoop, Sampler: SamplerConfig{Type: SamplerTypeRatio, Ratio: 1.5}}, ErrInvalidSamplerRatio},
		{"noop exporter", &Config{Enabled: true, ExporterType: ExporterTypeNoop}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, p.IsEnabled())
			assert.NoError(t, p.Close())
			assert.ErrorIs(t, p.Close(), ErrProviderClosed)
		})
	}
}

// TestStdoutExporter 测试 stdout 导出器在关闭时写出 span
func TestStdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(&Config{Enabled: true, ExporterType: ExporterTypeStdout}, WithStdout(&buf))
	require.NoError(t, err)
	require.True(t, p.IsEnabled())

	_, span := p.Tracer("test").Start(context.Background(), "encounter.begin")
	span.End()
	require.NoError(t, p.Close())

	assert.Contains(t, buf.String(), `"Name":"encounter.begin"`)
	assert.Contains(t, buf.String(), "service.name")
}

// TestStartEnd 测试全局 span 辅助函数记录错误状态
func TestStartEnd(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := New(&Config{Enabled: true}, WithExporter(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx, span := Start(context.Background(), "test", "ok", String("trainer_id", "u1"))
	assert.NotEmpty(t, TraceIDFrom(ctx))
	End(span, nil)

	_, span = Start(ctx, "test", "failed")
	End(span, errors.New("boom"))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "ok", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, "failed", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, spans[0].SpanContext.TraceID(), spans[1].SpanContext.TraceID())

	assert.Empty(t, TraceIDFrom(context.Background()))
}
