// Package telemetry holds the tracing helpers shared by the services.
package telemetry

import (
	"context"

	"github.com/Domenick1991/railbooking/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the instrumentation scope of every span this module starts.
const TracerName = "github.com/Domenick1991/railbooking"

// Setup installs a global sampling tracer provider when tracing is enabled.
// Otherwise the global no-op tracer stays in place. opts are appended to the
// provider options, which is how span processors and exporters are added.
func Setup(cfg config.TracingConfig, log *zap.Logger, opts ...sdktrace.TracerProviderOption) func(context.Context) error {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	}, opts...)
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	log.Info("tracing enabled", zap.String("service", cfg.ServiceName), zap.Float64("sample_ratio", ratio))
	return tp.Shutdown
}

func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// Fail marks the span as failed.
func Fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the id of the span in ctx, or "" when it is not sampled.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
