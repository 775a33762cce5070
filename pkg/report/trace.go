package report

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig selects an exporter for pass/promise spans, grounded on the
// teacher's telemetry.TracingConfig (exporter/endpoint/sampling knobs),
// pared down to what the evaluation loop needs.
type TracingConfig struct {
	Enabled      bool
	Exporter     string // "otlp", "stdout", "none"
	Endpoint     string
	SamplingRate float64
}

// Tracer wraps an OpenTelemetry tracer scoped to the evaluation loop (C5
// passes, C8 plan/commit phases), grounded on pkg/telemetry/tracer.go.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

func NewTracer(cfg TracingConfig) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{provider: sdktrace.NewTracerProvider(), tracer: otel.Tracer("converge")}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "otlp":
		exporter, err = otlptracegrpc.New(context.Background(), otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	case "stdout":
		exporter, err = stdouttrace.New()
	case "none", "":
		exporter = nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	rate := cfg.SamplingRate
	if rate <= 0 {
		rate = 1
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &Tracer{provider: provider, tracer: provider.Tracer("converge")}, nil
}

// StartPass opens a span covering one evaluator pass.
func (t *Tracer) StartPass(ctx context.Context, bundle string, pass int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "evaluator.pass", trace.WithAttributes(
		attribute.String("bundle", bundle),
		attribute.Int("pass", pass),
	))
}

// StartPromise opens a span covering one promise dispatch.
func (t *Tracer) StartPromise(ctx context.Context, subtype, promiser string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "evaluator.dispatch", trace.WithAttributes(
		attribute.String("subtype", subtype),
		attribute.String("promiser", promiser),
	))
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
