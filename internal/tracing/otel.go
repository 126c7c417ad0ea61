package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	initOnce sync.Once
	tpMu     sync.RWMutex
	tp       *sdktrace.TracerProvider
	initErr  error
)

// InitOpenTelemetry installs a process-wide tracer provider for the given
// service. Subsequent calls are no-ops and return the first outcome.
func InitOpenTelemetry(serviceName string) error {
	initOnce.Do(func() {
		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(semconv.ServiceName(serviceName)),
		)
		if err != nil {
			initErr = err
			return
		}

		provider := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1))),
			sdktrace.WithResource(res),
		)

		tpMu.Lock()
		tp = provider
		tpMu.Unlock()

		otel.SetTracerProvider(provider)
	})

	return initErr
}

// ShutdownOpenTelemetry flushes and stops the provider installed by
// InitOpenTelemetry. Safe to call when init never ran.
func ShutdownOpenTelemetry(ctx context.Context) error {
	tpMu.RLock()
	provider := tp
	tpMu.RUnlock()
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

// StartRequestSpan opens a span for one orchestrated request and mirrors the
// OTel trace ID into the request context when no trace ID is set yet, so the
// engine's own trace records line up with exported spans.
func StartRequestSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer("stagehand/orchestrator").Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
