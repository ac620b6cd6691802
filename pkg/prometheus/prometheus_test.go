package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandler 测试注册的指标可被抓取
func TestHandler(t *testing.T) {
	c, err := New(&Config{}, logger.NewNoop())
	require.NoError(t, err)
	defer c.Stop()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "encounter_test_total", Help: "test"})
	c.Registry().MustRegister(counter)
	counter.Add(3)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "encounter_test_total 3")
}

// TestStartDisabled 测试未启用独立端口时的启动停止
func TestStartDisabled(t *testing.T) {
	c, err := New(nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, c.Stop())
}

// TestStartEnabled 测试独立端口
func TestStartEnabled(t *testing.T) {
	c, err := New(&Config{HTTPServer: HTTPServerConfig{Enabled: true, Addr: "127.0.0.1:0"}}, logger.NewNoop())
	require.NoError(t, err)
	require.NoError(t, c.Start())
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Stop())
	assert.ErrorIs(t, c.Start(), ErrClientClosed)
}

// TestValidate 测试配置校验
func TestValidate(t *testing.T) {
	cfg := &Config{HTTPServer: HTTPServerConfig{Enabled: true}}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/metrics", cfg.HTTPServer.Path)
}
