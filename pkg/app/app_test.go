package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeServer struct {
	name     string
	rec      *recorder
	startErr error
}

func (s *fakeServer) Start() error {
	s.rec.add("start:" + s.name)
	return s.startErr
}

func (s *fakeServer) Stop() error {
	s.rec.add("stop:" + s.name)
	return nil
}

func newTestApp() *BaseApp {
	return NewBaseApp(WithName("test"), WithLogger(logger.NewNoop()), WithStopTimeout(time.Second))
}

// TestRunAndStop 测试启动、停止与资源逆序关闭
func TestRunAndStop(t *testing.T) {
	rec := &recorder{}
	a := newTestApp()
	InitApp(a, AppComponents{
		Servers: []Server{&fakeServer{name: "http", rec: rec}},
		Closers: []Closer{
			CloserFunc(func() error { rec.add("close:db"); return nil }),
			MapCloser(func() { rec.add("close:redis") }),
		},
	})

	done := make(chan error, 1)
	go func() { done <- a.Run() }()

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, a.Run(), ErrAppAlreadyRunning)

	a.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.Equal(t, []string{"start:http", "stop:http", "close:redis", "close:db"}, rec.snapshot())
	assert.NoError(t, a.Shutdown())
}

// TestRunStartFailure 测试服务启动失败时清理资源
func TestRunStartFailure(t *testing.T) {
	rec := &recorder{}
	a := newTestApp()
	a.AppendServer(&fakeServer{name: "http", rec: rec, startErr: errors.New("bind failed")})
	a.AppendCloser(CloserFunc(func() error { rec.add("close:db"); return nil }))

	err := a.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind failed")
	assert.Equal(t, []string{"start:http", "stop:http", "close:db"}, rec.snapshot())
}

// TestShutdownJoinsCloseErrors 测试关闭错误汇总
func TestShutdownJoinsCloseErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	a := newTestApp()
	a.AppendCloser(CloserFunc(func() error { return errA }), CloserFunc(func() error { return errB }))

	err := a.Shutdown()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

// TestLoggerFallback 测试具名日志回退
func TestLoggerFallback(t *testing.T) {
	a := newTestApp()
	assert.NotNil(t, a.Logger("audit"))

	custom := logger.NewNoop()
	a.RegisterLogger("audit", custom)
	assert.Same(t, custom, a.Logger("audit"))
}
