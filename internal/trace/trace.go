package trace

import (
	"context"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "tradejournal"

var (
	mu             sync.RWMutex
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
)

// Init включает трассировку с экспортом спанов в w. При enabled=false ничего не делает.
func Init(enabled bool, w io.Writer, version string) error {
	if !enabled {
		return nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	mu.Lock()
	tracerProvider = provider
	tracer = provider.Tracer(serviceName)
	mu.Unlock()

	return nil
}

// Shutdown сбрасывает накопленные спаны и выключает трассировку
func Shutdown(ctx context.Context) error {
	mu.Lock()
	provider := tracerProvider
	tracerProvider = nil
	tracer = nil
	mu.Unlock()

	if provider != nil {
		return provider.Shutdown(ctx)
	}

	return nil
}

// StartSpan открывает спан; без Init возвращает текущий спан из контекста
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.RLock()
	t := tracer
	mu.RUnlock()

	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return t.Start(ctx, spanName, opts...)
}

// Enabled сообщает, включена ли трассировка
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()

	return tracer != nil
}

// TraceFields возвращает идентификаторы текущего спана для логов
func TraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", "", false
	}

	return span.SpanContext().TraceID().String(),
		span.SpanContext().SpanID().String(),
		true
}
