package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFieldExtractor 从 context 提取字段的函数类型
type ContextFieldExtractor func(ctx context.Context) []zap.Field

type ctxKey int

const (
	requestIDKey ctxKey = iota
	trainerIDKey
	encounterIDKey
)

// WithRequestID 在 context 中记录请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithTrainerID 在 context 中记录训练家 ID
func WithTrainerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, trainerIDKey, id)
}

// WithEncounterID 在 context 中记录遭遇 ID
func WithEncounterID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, encounterIDKey, id)
}

// RequestIDFrom 读取请求 ID，不存在时返回空串
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// DefaultContextExtractor 提取 request_id、trainer_id、encounter_id 与当前 span 的 trace_id
func DefaultContextExtractor(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}

	var fields []zap.Field
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := ctx.Value(trainerIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("trainer_id", id))
	}
	if id, ok := ctx.Value(encounterIDKey).(int64); ok && id != 0 {
		fields = append(fields, zap.Int64("encounter_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	return fields
}
