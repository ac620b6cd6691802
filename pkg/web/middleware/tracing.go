package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/pkg/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Tracing 为每个请求开启 server span，上游的 traceparent 会被继承
func Tracing(tracerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := otel.Tracer(tracerName).Start(ctx,
			fmt.Sprintf("%s %s", c.Request.Method, route),
			otel.WithSpanKind(otel.SpanKindServer),
			otel.WithAttributes(
				otel.String("http.method", c.Request.Method),
				otel.String("http.route", c.FullPath()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(otel.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(otel.CodeError, fmt.Sprintf("HTTP status %d", status))
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last().Err)
		}
	}
}
