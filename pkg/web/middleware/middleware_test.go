package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/otel"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// TestRequestID 测试请求 ID 透传与生成
func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFrom(c.Request.Context()))
	})

	w := serve(r, http.MethodGet, "/id", map[string]string{RequestIDHeader: "req-1"})
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = serve(r, http.MethodGet, "/id", nil)
	assert.Len(t, w.Body.String(), 36)
}

// TestRecovery 测试 panic 恢复
func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logger.NewNoop()))
	r.GET("/panic", func(c *gin.Context) { panic(errors.New("boom")) })

	w := serve(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "50000")
}

// TestRateLimit 测试按键限流
func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(logger.NewNoop(), RateLimitConfig{
		RequestsPerSecond: 0.001,
		Burst:             2,
		SkipPaths:         []string{"/healthz"},
		KeyFunc:           func(c *gin.Context) string { return c.Param("id") },
	})
	defer rl.Close()

	r := gin.New()
	r.Use(RateLimit(rl))
	r.GET("/trainers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/trainers/a", nil).Code)
	}
	w := serve(r, http.MethodGet, "/trainers/a", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/trainers/b", nil).Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", nil).Code)
	}
}

// TestAPIKey 测试密钥校验
func TestAPIKey(t *testing.T) {
	r := gin.New()
	r.Use(APIKey([]string{"k1", "k2"}, "/healthz"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/x", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/x", map[string]string{APIKeyHeader: "bad"}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", map[string]string{APIKeyHeader: "k2"}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", nil).Code)
}

// TestMetrics 测试请求计数
func TestMetrics(t *testing.T) {
	m := metrics.New("test")
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/trainers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/trainers/1", nil)
	serve(r, http.MethodGet, "/trainers/2", nil)
	serve(r, http.MethodGet, "/missing", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/trainers/:id", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unknown", "GET", "404")))
}

// TestTracing 测试 server span 继承上游 trace 并记录状态码
func TestTracing(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := otel.New(&otel.Config{Enabled: true}, otel.WithExporter(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Close() })

	r := gin.New()
	r.Use(Tracing("web"))
	r.GET("/items/:id", func(c *gin.Context) {
		c.String(http.StatusOK, otel.TraceIDFrom(c.Request.Context()))
	})
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	w := serve(r, http.MethodGet, "/items/7", map[string]string{
		"traceparent": "00-" + traceID + "-00f067aa0ba902b7-01",
	})
	assert.Equal(t, traceID, w.Body.String())
	serve(r, http.MethodGet, "/fail", nil)

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /items/:id", spans[0].Name)
	assert.Equal(t, traceID, spans[0].SpanContext.TraceID().String())
	assert.Contains(t, spans[0].Attributes, attribute.Int("http.status_code", http.StatusOK))
	assert.Equal(t, "GET /fail", spans[1].Name)
	assert.Equal(t, otel.CodeError, spans[1].Status.Code)
}
