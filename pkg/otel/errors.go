package otel

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidServiceName 服务名称为空
	ErrInvalidServiceName = errors.New("otel: invalid service name")

	// ErrInvalidSamplerRatio 采样比率越界
	ErrInvalidSamplerRatio = errors.New("otel: sampler ratio must be between 0 and 1")

	// ErrProviderClosed 提供者已关闭
	ErrProviderClosed = errors.New("otel: provider is closed")

	// ErrExporterFailed 导出器创建失败
	ErrExporterFailed = errors.New("otel: failed to create exporter")
)
