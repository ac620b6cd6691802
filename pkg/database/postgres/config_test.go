package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveConfig 测试默认值合并与模式切换
func TestResolveConfig(t *testing.T) {
	t.Run("nil uses standalone defaults", func(t *testing.T) {
		cfg, err := resolveConfig(nil)
		require.NoError(t, err)
		assert.True(t, cfg.IsStandaloneMode())
		assert.Equal(t, "encounter", cfg.Standalone.DBName)
		assert.Equal(t, int32(25), cfg.Pool.MaxConns)
	})

	t.Run("standalone override keeps other defaults", func(t *testing.T) {
		cfg, err := resolveConfig(&Config{Standalone: &DBConfig{Host: "db.internal", Password: "secret"}})
		require.NoError(t, err)
		assert.Equal(t, "db.internal", cfg.Standalone.Host)
		assert.Equal(t, 5432, cfg.Standalone.Port)
		assert.Equal(t, "postgres", cfg.Standalone.User)
	})

	t.Run("master drops default standalone", func(t *testing.T) {
		cfg, err := resolveConfig(&Config{
			Master: &DBConfig{Host: "primary", Port: 5432, User: "app", DBName: "encounter"},
			Slaves: []DBConfig{{Host: "replica", Port: 5432, User: "app", DBName: "encounter"}},
		})
		require.NoError(t, err)
		assert.False(t, cfg.IsStandaloneMode())
		assert.True(t, cfg.IsMasterSlaveMode())
		assert.Len(t, cfg.Slaves, 1)
	})
}

// TestValidate 测试配置校验
func TestValidate(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "both modes", mutate: func(c *Config) { c.Master = &DBConfig{Host: "h", Port: 1, User: "u", DBName: "d"} }},
		{name: "no mode", mutate: func(c *Config) { c.Standalone = nil }},
		{name: "empty host", mutate: func(c *Config) { c.Standalone.Host = "" }},
		{name: "bad port", mutate: func(c *Config) { c.Standalone.Port = 70000 }},
		{name: "min above max", mutate: func(c *Config) { c.Pool.MinConns = 30 }},
		{name: "bad slave", mutate: func(c *Config) {
			c.Standalone = nil
			c.Master = &DBConfig{Host: "h", Port: 1, User: "u", DBName: "d"}
			c.Slaves = []DBConfig{{Host: "r"}}
		}},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}

// TestConnString 测试连接串
func TestConnString(t *testing.T) {
	d := &DBConfig{Host: "h", Port: 5433, User: "u", Password: "p", DBName: "d"}
	assert.Equal(t,
		"host=h port=5433 user=u password=p dbname=d sslmode=disable connect_timeout=3",
		d.connString(3*time.Second))
}

// TestQueryBuilder 测试占位符格式
func TestQueryBuilder(t *testing.T) {
	query, args, err := QueryBuilder.Update("bag_items").
		Set("quantity", 1).
		Where("trainer_id = ?", "t1").
		ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE bag_items SET quantity = $1 WHERE trainer_id = $2", query)
	assert.Equal(t, []any{1, "t1"}, args)
}
