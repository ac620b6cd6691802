package service

import (
	"context"
	"testing"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/otel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestEncounterSpans 测试遭遇、投掷与结算的 span 层级
func TestEncounterSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := otel.New(&otel.Config{Enabled: true}, otel.WithExporter(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Close() })

	ctx := context.Background()
	env := newTestEnv(t, alwaysCatch)
	env.seed(t, "u1", 0, map[model.DeviceType]int64{model.DevicePokeball: 1})

	begin(t, env, "u1")
	out, err := env.capture.SubmitDevice(ctx, "u1", model.DevicePokeball)
	require.NoError(t, err)
	require.Equal(t, model.OutcomeCaught, out.Kind)
	_, err = env.capture.SubmitAbort(ctx, "u1")
	require.NoError(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 4)
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"encounter.begin", "trainer.settle_catch", "encounter.throw", "encounter.run"}, names)

	settle, throw := spans[1], spans[2]
	assert.Equal(t, throw.SpanContext.SpanID(), settle.Parent.SpanID())
	assert.Contains(t, throw.Attributes, attribute.String("outcome.kind", string(model.OutcomeCaught)))
	assert.Contains(t, spans[3].Attributes, attribute.String("outcome.reason", string(model.ReasonNoSession)))
}
