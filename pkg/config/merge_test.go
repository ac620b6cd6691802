package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mergeInner struct {
	Host string
	Port int
}

type mergeSample struct {
	Name     string
	Timeout  time.Duration
	Enabled  *bool
	Tags     []string
	Inner    mergeInner
	Labels   map[string]string
	Deadline time.Time
}

// TestMergeConfig 测试配置合并
func TestMergeConfig(t *testing.T) {
	off := false
	deadline := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	on := true

	dst := &mergeSample{
		Name:    "default",
		Timeout: time.Second,
		Enabled: &on,
		Tags:    []string{"a"},
		Inner:   mergeInner{Host: "localhost", Port: 5432},
		Labels:  map[string]string{"env": "dev"},
	}
	src := &mergeSample{
		Timeout:  5 * time.Second,
		Enabled:  &off,
		Inner:    mergeInner{Port: 6432},
		Labels:   map[string]string{"zone": "a"},
		Deadline: deadline,
	}

	merged, err := MergeConfig(dst, src)
	require.NoError(t, err)

	assert.Equal(t, "default", merged.Name)
	assert.Equal(t, 5*time.Second, merged.Timeout)
	require.NotNil(t, merged.Enabled)
	assert.False(t, *merged.Enabled)
	assert.Equal(t, []string{"a"}, merged.Tags)
	assert.Equal(t, "localhost", merged.Inner.Host)
	assert.Equal(t, 6432, merged.Inner.Port)
	assert.Equal(t, map[string]string{"env": "dev", "zone": "a"}, merged.Labels)
	assert.True(t, deadline.Equal(merged.Deadline))
}

// TestMergeConfigNil 测试 nil 参数
func TestMergeConfigNil(t *testing.T) {
	src := &mergeSample{Name: "x"}

	got, err := MergeConfig(nil, src)
	require.NoError(t, err)
	assert.Same(t, src, got)

	got, err = MergeConfig(src, nil)
	require.NoError(t, err)
	assert.Same(t, src, got)

	_, err = MergeConfig[mergeSample](nil, nil)
	assert.Error(t, err)
}
