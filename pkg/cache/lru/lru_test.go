package lru

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg *Config, opts ...Option[string, int]) (*LRU[string, int], *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	c := New[string, int](cfg, append([]Option[string, int]{WithClock[string, int](clock)}, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

// TestSetGet 测试基础读写
func TestSetGet(t *testing.T) {
	c, _ := newTestCache(t, &Config{MaxSize: 10})

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

// TestEviction 测试容量淘汰顺序
func TestEviction(t *testing.T) {
	var evicted []string
	c, _ := newTestCache(t, &Config{MaxSize: 2}, WithOnEvict(func(k string, _ int) {
		evicted = append(evicted, k)
	}))

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Len())
}

// TestTTL 测试过期
func TestTTL(t *testing.T) {
	c, clock := newTestCache(t, &Config{MaxSize: 10, DefaultTTL: time.Minute})

	c.Set("a", 1)
	c.SetWithTTL("b", 2, 0)
	clock.Advance(time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

// TestCleanupLoop 测试后台清理
func TestCleanupLoop(t *testing.T) {
	c, clock := newTestCache(t, &Config{MaxSize: 10, DefaultTTL: time.Second, CleanupInterval: time.Second})
	c.Set("a", 1)

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(time.Second)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

// TestGetMany 测试批量读取
func TestGetMany(t *testing.T) {
	c, _ := newTestCache(t, &Config{MaxSize: 10})
	c.Set("a", 1)
	c.Set("c", 3)

	hits, misses := c.GetMany([]string{"a", "b", "c", "d"})
	assert.Equal(t, map[string]int{"a": 1, "c": 3}, hits)
	assert.Equal(t, []string{"b", "d"}, misses)
}

// TestGetOrCreate 测试按需创建
func TestGetOrCreate(t *testing.T) {
	c, _ := newTestCache(t, &Config{MaxSize: 10})
	calls := 0
	create := func() int { calls++; return 7 }

	assert.Equal(t, 7, c.GetOrCreate("k", create))
	assert.Equal(t, 7, c.GetOrCreate("k", create))
	assert.Equal(t, 1, calls)
}

// TestClose 测试重复关闭
func TestClose(t *testing.T) {
	c := New[string, int](&Config{CleanupInterval: time.Millisecond})
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
