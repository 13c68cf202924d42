// Package observability настраивает трассировку OpenTelemetry.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/isoworld/internal/logging"
)

// InstrumentationName имя трейсера движка
const InstrumentationName = "github.com/annel0/isoworld"

// InitTelemetry настраивает OTLP экспортер и устанавливает глобальный TracerProvider.
// Возвращает функцию shutdown, которую нужно вызвать при завершении приложения.
func InitTelemetry(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	// OTLP HTTP экспортер (по умолчанию localhost:4318)
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	logging.Info("📡 OpenTelemetry инициализирован (OTLP → 4318, service=%s)", serviceName)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, nil
}

// Tracer возвращает трейсер движка из глобального провайдера.
// Без InitTelemetry это no-op трейсер.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan открывает спан с атрибутами-строками (ключ, значение, ключ, значение...)
func StartSpan(ctx context.Context, name string, kv ...string) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}
