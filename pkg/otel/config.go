package otel

import "time"

// Config TracerProvider 配置
type Config struct {
	// Enabled 为 false 时不创建导出器，span 由全局 noop provider 处理
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// Endpoint 导出器端点
	// OTLP HTTP: localhost:4318
	// OTLP gRPC: localhost:4317
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// ExporterType 导出器类型: "otlp-http", "otlp-grpc", "stdout", "noop"
	ExporterType ExporterType `json:"exporter_type" yaml:"exporter_type" mapstructure:"exporter_type" validate:"omitempty,oneof=otlp-http otlp-grpc stdout noop"`

	Sampler     SamplerConfig     `json:"sampler" yaml:"sampler" mapstructure:"sampler"`
	BatchExport BatchExportConfig `json:"batch_export" yaml:"batch_export" mapstructure:"batch_export"`

	// Attributes 附加到 resource 的属性
	Attributes map[string]string `json:"attributes" yaml:"attributes" mapstructure:"attributes"`

	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// Insecure 不使用 TLS
	Insecure bool `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
}

// ExporterType 导出器类型
type ExporterType string

const (
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	// ExporterTypeStdout 输出到标准输出，调试用
	ExporterTypeStdout ExporterType = "stdout"
	ExporterTypeNoop   ExporterType = "noop"
)

// SamplerConfig 采样配置
type SamplerConfig struct {
	// Type 采样类型: "always", "never", "ratio", "parent"
	Type SamplerType `json:"type" yaml:"type" mapstructure:"type"`

	// Ratio 仅当 Type 为 "ratio" 时有效
	Ratio float64 `json:"ratio" yaml:"ratio" mapstructure:"ratio"`
}

// SamplerType 采样类型
type SamplerType string

const (
	SamplerTypeAlways SamplerType = "always"
	SamplerTypeNever  SamplerType = "never"
	SamplerTypeRatio  SamplerType = "ratio"
	// SamplerTypeParent 跟随父 span，根 span 始终采样
	SamplerTypeParent SamplerType = "parent"
)

// BatchExportConfig 批量导出配置
type BatchExportConfig struct {
	BatchSize     int           `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	ExportTimeout time.Duration `json:"export_timeout" yaml:"export_timeout" mapstructure:"export_timeout"`
	MaxQueueSize  int           `json:"max_queue_size" yaml:"max_queue_size" mapstructure:"max_queue_size"`
	BatchTimeout  time.Duration `json:"batch_timeout" yaml:"batch_timeout" mapstructure:"batch_timeout"`
}

// DefaultConfig 默认配置，默认不启用
func DefaultConfig() *Config {
	return &Config{
		ServiceName:  "encounter",
		Endpoint:     "localhost:4318",
		ExporterType: ExporterTypeOTLPHTTP,
		Sampler: SamplerConfig{
			Type:  SamplerTypeParent,
			Ratio: 1.0,
		},
		BatchExport: BatchExportConfig{
			BatchSize:     512,
			ExportTimeout: 30 * time.Second,
			MaxQueueSize:  2048,
			BatchTimeout:  5 * time.Second,
		},
		Attributes:      make(map[string]string),
		ShutdownTimeout: 5 * time.Second,
		Insecure:        true,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrInvalidServiceName
	}
	if c.Sampler.Type == SamplerTypeRatio && (c.Sampler.Ratio < 0 || c.Sampler.Ratio > 1) {
		return ErrInvalidSamplerRatio
	}
	return nil
}
