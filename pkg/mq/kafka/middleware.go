package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// LoggingMiddleware 记录发送失败，成功只在 debug 级别记录
func LoggingMiddleware(l logger.Logger) ProducerMiddleware {
	return func(ctx context.Context, msg *Message, next PublishFunc) error {
		start := time.Now()
		err := next(ctx, msg)
		if err != nil {
			l.ErrorContext(ctx, "message publish failed",
				"key", string(msg.Key),
				"duration", time.Since(start),
				"error", err,
			)
			return err
		}
		l.DebugContext(ctx, "message published", "key", string(msg.Key), "duration", time.Since(start))
		return nil
	}
}

// RecoveryMiddleware 把发送过程的 panic 转为 ErrProducerPanic
func RecoveryMiddleware() ProducerMiddleware {
	return func(ctx context.Context, msg *Message, next PublishFunc) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrProducerPanic, r)
			}
		}()
		return next(ctx, msg)
	}
}

// RequestIDMiddleware 把 context 中的请求 ID 写入 x-request-id 头
func RequestIDMiddleware() ProducerMiddleware {
	return func(ctx context.Context, msg *Message, next PublishFunc) error {
		if id := logger.RequestIDFrom(ctx); id != "" {
			if msg.Headers == nil {
				msg.Headers = make(map[string]string, 1)
			}
			msg.Headers["x-request-id"] = id
		}
		return next(ctx, msg)
	}
}
