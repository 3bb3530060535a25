// Package telemetry wires OpenTelemetry tracing for the sticker pipeline.
package telemetry

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"sticker-bot/conf"
)

const ServiceName = "sticker-bot"

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Shutdown flushes buffered spans.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// SetupTracing makes the configured exporter the global tracer provider.
// Spans started before it, or with ExporterNone, go nowhere.
func SetupTracing(ctx context.Context, cfg conf.TraceConfig, logger *slog.Logger) (Shutdown, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if kind == "" {
		kind = ExporterNone
	}

	exp, err := newExporter(ctx, kind, cfg)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		logger.Debug("tracing off")
		return noop, nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(semconv.ServiceName(ServiceName))),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing on", "exporter", kind)
	return tp.Shutdown, nil
}

// newExporter returns a nil exporter for ExporterNone.
func newExporter(ctx context.Context, kind string, cfg conf.TraceConfig) (sdktrace.SpanExporter, error) {
	switch kind {
	case ExporterNone:
		return nil, nil
	case ExporterStdout:
		exp, err := stdouttrace.New()
		return exp, errors.WithMessage(err, "stdout exporter")
	case ExporterOTLP:
		endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		if endpoint == "" {
			return nil, errors.New("OTLP_ENDPOINT is required for the otlp exporter")
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		return exp, errors.WithMessage(err, "otlp exporter")
	default:
		return nil, errors.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}
