package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDefault 测试默认数值
func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 60*time.Second, cfg.Capture.Timeout)
	assert.Equal(t, 20, cfg.Capture.FleeChance)
	assert.Equal(t, 255, cfg.Capture.CatchRange)
	assert.InDelta(t, 100.0, cfg.Spawn.Weights.Total(), 1e-9)
	assert.InDelta(t, 1.0/4096, cfg.Spawn.ShinyProbability, 1e-12)
	assert.Len(t, cfg.StartKit.Starters, 9)
	assert.Equal(t, []int{906, 909, 912}, cfg.StartKit.Starters[9])

	m, ok := cfg.Capture.Multiplier(model.DeviceGreatball)
	assert.True(t, ok)
	assert.Equal(t, 1.5, m)
}

func TestDailyReward(t *testing.T) {
	d := Default().Daily
	assert.Equal(t, int64(1100), d.Reward(1))
	assert.Equal(t, int64(1500), d.Reward(5))
	assert.Equal(t, int64(2000), d.Reward(10))
	assert.Equal(t, int64(2000), d.Reward(42))
}

// TestValidate 测试非法数值
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"flee above 100", func(c *Config) { c.Capture.FleeChance = 101 }},
		{"multiplier below 1", func(c *Config) { c.Capture.Multipliers[model.DevicePokeball] = 0.5 }},
		{"unknown device", func(c *Config) { c.Capture.Multipliers["premierball"] = 1 }},
		{"zero weights", func(c *Config) { c.Spawn.Weights = TierWeights{} }},
		{"level range", func(c *Config) { c.Spawn.MinLevel, c.Spawn.MaxLevel = 10, 5 }},
		{"reward range", func(c *Config) { c.Capture.RewardMin, c.Capture.RewardMax = 100, 50 }},
		{"shiny probability", func(c *Config) { c.Spawn.ShinyProbability = 2 }},
		{"no timeout", func(c *Config) { c.Capture.Timeout = 0 }},
		{"empty starters", func(c *Config) { c.StartKit.Starters[1] = nil }},
		{"curve cap", func(c *Config) { c.Curve.MaxLevel = 10 }},
		{"free item", func(c *Config) { c.Shop.Prices[model.DevicePokeball] = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRules), "got %v", err)
		})
	}
}

// TestNewProvider 测试从文件加载并保留默认值
func TestNewProvider(t *testing.T) {
	p, err := NewProvider(nil, logger.NewNoop())
	require.NoError(t, err)
	assert.Equal(t, 20, p.Current().Capture.FleeChance)

	path := writeRules(t, t.TempDir(), `
capture:
  flee_chance: 0
  timeout: 30s
  multipliers:
    greatball: 3
`)
	p, err = NewProvider(&SourceConfig{Path: path}, logger.NewNoop())
	require.NoError(t, err)

	cur := p.Current()
	assert.Equal(t, 0, cur.Capture.FleeChance)
	assert.Equal(t, 30*time.Second, cur.Capture.Timeout)
	assert.Equal(t, 3.0, cur.Capture.Multipliers[model.DeviceGreatball])
	assert.Equal(t, 1.0, cur.Capture.Multipliers[model.DevicePokeball])
	assert.Equal(t, 255, cur.Capture.CatchRange)

	bad := writeRules(t, t.TempDir(), "capture:\n  flee_chance: 500\n")
	_, err = NewProvider(&SourceConfig{Path: bad}, logger.NewNoop())
	assert.True(t, errors.Is(err, ErrInvalidRules))
	empty := writeRules(t, t.TempDir(), "")
	_, err = NewProvider(&SourceConfig{Path: empty}, logger.NewNoop())
	assert.True(t, errors.Is(err, config.ErrEmptyConfig))
}

// TestWatched 测试热更新与非法文件回退
func TestWatched(t *testing.T) {
	dir := t.TempDir()
	path := writeRules(t, dir, "capture:\n  flee_chance: 10\n")

	p, err := NewWatched(path, logger.NewNoop())
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, 10, p.Current().Capture.FleeChance)

	writeRules(t, dir, "capture:\n  flee_chance: 35\n")
	require.NoError(t, p.Reload())
	assert.Equal(t, 35, p.Current().Capture.FleeChance)

	writeRules(t, dir, "capture:\n  flee_chance: 120\n")
	assert.Error(t, p.Reload())
	assert.Equal(t, 35, p.Current().Capture.FleeChance)

	// 改写中的空文件不会把数值重置为默认值
	writeRules(t, dir, "")
	assert.ErrorIs(t, p.Reload(), config.ErrEmptyConfig)
	assert.Equal(t, 35, p.Current().Capture.FleeChance)
}
