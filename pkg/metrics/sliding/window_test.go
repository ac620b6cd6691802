package sliding

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWindowStats 测试窗口内汇总与过期
func TestWindowStats(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	w, err := NewWindow(&WindowConfig{WindowSize: 10 * time.Second, BucketCount: 10}, WithClock(clock))
	require.NoError(t, err)

	w.Record(10*time.Millisecond, true)
	w.Record(30*time.Millisecond, false)
	clock.Advance(3 * time.Second)
	w.Record(20*time.Millisecond, true)

	stats := w.GetStats()
	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(1), stats.FailureCount)
	assert.Equal(t, 20*time.Millisecond, stats.AvgLatency)
	assert.Equal(t, 10*time.Millisecond, stats.MinLatency)
	assert.Equal(t, 30*time.Millisecond, stats.MaxLatency)
	assert.InDelta(t, 0.3, stats.QPS, 1e-9)
	assert.InDelta(t, 66.666, stats.SuccessRate, 0.01)

	// 前两条落出窗口
	clock.Advance(8 * time.Second)
	stats = w.GetStats()
	assert.Equal(t, int64(1), stats.TotalCount)
	assert.Equal(t, 20*time.Millisecond, stats.MinLatency)

	// 桶被复用时旧数据清零
	clock.Advance(10 * time.Second)
	w.Record(5*time.Millisecond, true)
	stats = w.GetStats()
	assert.Equal(t, int64(1), stats.TotalCount)
	assert.Equal(t, 5*time.Millisecond, stats.MaxLatency)
}

func TestWindowDisabled(t *testing.T) {
	w, err := NewWindow(&WindowConfig{WindowSize: time.Second, BucketCount: 1})
	require.NoError(t, err)
	w.config.Enabled = false
	w.Record(time.Millisecond, true)
	assert.Zero(t, w.GetStats().TotalCount)
}

func TestWindowInvalid(t *testing.T) {
	_, err := NewWindow(&WindowConfig{WindowSize: 5, BucketCount: 10})
	assert.Error(t, err)
}
