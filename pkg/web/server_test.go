package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/errors"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nicknameRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(&Config{Mode: gin.TestMode, Addr: "127.0.0.1:0"}, logger.NewNoop(), nil)
	r := s.Router()
	r.GET("/ok", func(c *gin.Context) { Success(c, gin.H{"n": 1}) })
	r.GET("/missing", func(c *gin.Context) { Error(c, errors.CodeNotFound, "trainer not found") })
	r.PUT("/nickname", func(c *gin.Context) {
		var req nicknameRequest
		if !BindAndValidate(c, &req) {
			return
		}
		Success(c, req)
	})
	return s
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// TestResponses 测试统一响应结构
func TestResponses(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(middleware.RequestIDHeader, "trace-1")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, errors.CodeOK, resp.Code)
	assert.Equal(t, "trace-1", resp.TraceID)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.CodeNotFound, decode(t, w).Code)
}

// TestBindAndValidate 测试请求体校验
func TestBindAndValidate(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "valid", body: `{"nickname":"Sparky"}`, code: http.StatusOK},
		{name: "missing field", body: `{}`, code: http.StatusBadRequest},
		{name: "malformed", body: `{`, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/nickname", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

// TestStartStop 测试监听与优雅停止
func TestStartStop(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrServerAlreadyStarted)

	resp, err := http.Get("http://" + s.Addr().String() + "/ok")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NoError(t, s.GracefulStop())
}

// TestCodeToStatus 测试错误码映射
func TestCodeToStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, errors.CodeToStatus(errors.CodeInvalidParams))
	assert.Equal(t, http.StatusConflict, errors.CodeToStatus(errors.CodeConflict))
	assert.Equal(t, http.StatusTooManyRequests, errors.CodeToStatus(errors.CodeRateLimited))
	assert.Equal(t, http.StatusInternalServerError, errors.CodeToStatus(errors.CodeExternalError))
}
