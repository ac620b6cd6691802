package sentry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// recordingTransport 记录事件，不发网络请求
type recordingTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (r *recordingTransport) Configure(sentry.ClientOptions) {}
func (r *recordingTransport) Flush(time.Duration) bool { return true }
func (r *recordingTransport) FlushWithContext(context.Context) bool { return true }
func (r *recordingTransport) Close() {}
func (r *recordingTransport) SendEvent(e *sentry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingTransport) Events() []*sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*sentry.Event(nil), r.events...)
}

// TestDisabledWithoutDSN 测试没有 DSN 时不上报
func TestDisabledWithoutDSN(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	assert.Nil(t, c.CaptureException(context.Background(), errors.New("boom"), nil))
	assert.Nil(t, c.RecoverWithContext(context.Background(), "panic"))
	assert.Equal(t, Stats{}, c.Stats())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Close(), ErrClientClosed)
}

// TestNewValidate 测试非法采样率
func TestNewValidate(t *testing.T) {
	_, err := New(&Config{SampleRate: 1.5})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// TestCaptureException 测试错误上报携带标签与 trace id
func TestCaptureException(t *testing.T) {
	tr := &recordingTransport{}
	c, err := New(&Config{
		DSN:  "https://public@sentry.example.com/1",
		Tags: map[string]string{"service": "encounter"},
	}, WithTransport(tr))
	require.NoError(t, err)
	require.True(t, c.Enabled())

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}))

	id := c.CaptureException(ctx, errors.New("connection reset"), map[string]string{"action": "throw"})
	require.NotNil(t, id)
	require.NotNil(t, c.RecoverWithContext(context.Background(), "nil map write"))

	events := tr.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "encounter", events[0].Tags["service"])
	assert.Equal(t, "throw", events[0].Tags["action"])
	assert.Equal(t, traceID.String(), events[0].Tags["trace_id"])
	assert.NotContains(t, events[1].Tags, "action")
	assert.Equal(t, Stats{EventsTotal: 2, EventsCaptured: 2}, c.Stats())
}

// TestDefault 测试包级默认客户端
func TestDefault(t *testing.T) {
	t.Cleanup(func() { SetDefault(nil) })
	assert.Nil(t, CaptureException(context.Background(), errors.New("boom"), nil))

	tr := &recordingTransport{}
	c, err := New(&Config{DSN: "https://public@sentry.example.com/1"}, WithTransport(tr))
	require.NoError(t, err)
	SetDefault(c)

	assert.NotNil(t, CaptureException(context.Background(), errors.New("boom"), nil))
	assert.NotNil(t, RecoverWithContext(context.Background(), "panic"))
	assert.Len(t, tr.Events(), 2)
}
