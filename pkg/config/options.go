package config

import "github.com/spf13/viper"

// Option 配置选项函数
type Option func(*manager)

// WithDefaults 设置默认配置值
func WithDefaults(defaults map[string]any) Option {
	return func(m *manager) {
		for key, value := range defaults {
			m.v.SetDefault(key, value)
		}
	}
}

// WithConfigType 显式指定配置格式（yaml、json）
func WithConfigType(configType string) Option {
	return func(m *manager) {
		m.v.SetConfigType(configType)
	}
}

// WithViper 使用外部构造的 Viper 实例
func WithViper(v *viper.Viper) Option {
	return func(m *manager) {
		m.v = v
	}
}
