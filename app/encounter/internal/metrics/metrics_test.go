package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecord 测试指标记录
func TestRecord(t *testing.T) {
	m, err := New(&Config{Namespace: "test"})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg), "duplicate registration must fail")

	m.RecordEncounterStarted()
	m.RecordEncounterStarted()
	m.RecordOutcome("caught", "")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EncountersStarted))

	m.RecordThrow("pokeball", "retry")
	m.RecordThrow("pokeball", "retry")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Throws.WithLabelValues("pokeball", "retry")))

	m.RecordCacheHit("memory")
	m.RecordCacheMiss("redis")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitTotal.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissTotal.WithLabelValues("redis")))

	m.RecordDBQuery("select", false, 0.01)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryTotal.WithLabelValues("select", "failed")))

	m.RecordAction("throw", true, 5*time.Millisecond)
	assert.Equal(t, int64(1), m.GetStats().TotalCount)
	assert.Equal(t, "test", m.GetConfig().Namespace)
}

// TestNilMetrics 测试 nil 接收者不会 panic
func TestNilMetrics(t *testing.T) {
	var m *EncounterMetrics
	assert.NotPanics(t, func() {
		m.RecordEncounterStarted()
		m.RecordOutcome("fled", "run")
		m.RecordThrow("pokeball", "caught")
		m.RecordRejection("no_session")
		m.RecordGuardConflict()
		m.RecordAction("begin", true, time.Millisecond)
		m.RecordDBQuery("select", true, 0)
		m.RecordCacheHit("memory")
		m.RecordCacheMiss("memory")
		m.RecordEventPublished(true)
		m.RecordXPGrant(false)
		_ = m.GetStats()
	})
}
