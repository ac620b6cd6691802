package web

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Config HTTP 服务配置
type Config struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	EnableCORS   bool     `mapstructure:"enable_cors"`
	AllowOrigins []string `mapstructure:"allow_origins"`

	// APIKeys 非空时要求请求携带 X-API-Key
	APIKeys []string `mapstructure:"api_keys"`

	// Tracing 为每个请求开启 server span，需要先创建 otel.TracerProvider
	Tracing bool `mapstructure:"tracing"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}
