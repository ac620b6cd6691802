package prometheus

import "time"

// Config 指标端点配置
type Config struct {
	HTTPServer HTTPServerConfig `mapstructure:"http_server" json:"http_server" yaml:"http_server"`

	EnableGoCollector      bool `mapstructure:"enable_go_collector" json:"enable_go_collector" yaml:"enable_go_collector"`
	EnableProcessCollector bool `mapstructure:"enable_process_collector" json:"enable_process_collector" yaml:"enable_process_collector"`
}

// HTTPServerConfig 独立指标 HTTP 服务
type HTTPServerConfig struct {
	// Enabled 为 false 时只能通过 Handler 挂到业务路由上
	Enabled bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string        `mapstructure:"addr" json:"addr" yaml:"addr"`
	Path    string        `mapstructure:"path" json:"path" yaml:"path"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		HTTPServer: HTTPServerConfig{
			Addr:    ":9090",
			Path:    "/metrics",
			Timeout: 10 * time.Second,
		},
		EnableGoCollector:      true,
		EnableProcessCollector: true,
	}
}

// Validate 验证配置并补齐路径与超时
func (c *Config) Validate() error {
	if c.HTTPServer.Enabled && c.HTTPServer.Addr == "" {
		return ErrInvalidConfig
	}
	if c.HTTPServer.Path == "" {
		c.HTTPServer.Path = "/metrics"
	}
	if c.HTTPServer.Timeout <= 0 {
		c.HTTPServer.Timeout = 10 * time.Second
	}
	return nil
}
