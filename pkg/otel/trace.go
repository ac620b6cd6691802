package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 重导出常用类型，业务代码不直接依赖 go.opentelemetry.io/otel
type (
	Span            = trace.Span
	SpanKind        = trace.SpanKind
	SpanStartOption = trace.SpanStartOption
	Attribute       = attribute.KeyValue
)

const (
	SpanKindInternal = trace.SpanKindInternal
	SpanKindServer   = trace.SpanKindServer
	SpanKindClient   = trace.SpanKindClient
	SpanKindProducer = trace.SpanKindProducer
)

const (
	CodeUnset = codes.Unset
	CodeError = codes.Error
	CodeOk    = codes.Ok
)

var (
	String = attribute.String
	Int    = attribute.Int
	Int64  = attribute.Int64
	Bool   = attribute.Bool
)

// Tracer 每次调用都从当前全局 provider 取 tracer，替换 provider 后立即生效
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// Start 在全局 provider 上开始一个 span
func Start(ctx context.Context, tracer, spanName string, attrs ...Attribute) (context.Context, Span) {
	return Tracer(tracer).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// End 按 err 设置状态并结束 span，用于 defer
func End(span Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// WithSpanKind 设置 span 类型
func WithSpanKind(kind SpanKind) SpanStartOption {
	return trace.WithSpanKind(kind)
}

// WithAttributes 设置 span 属性
func WithAttributes(attrs ...Attribute) SpanStartOption {
	return trace.WithAttributes(attrs...)
}

// TraceIDFrom 当前 span 的 trace id，没有有效 span 时返回空串
func TraceIDFrom(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// GetTextMapPropagator 全局传播器
func GetTextMapPropagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}
