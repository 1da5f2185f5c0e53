package trace

import (
	"context"
	"fmt"

	sentryotel "github.com/getsentry/sentry-go/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkTrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	// Export spans over OTLP/HTTP. The endpoint comes from the standard
	// OTEL_EXPORTER_OTLP_* variables.
	Enabled    bool    `split_words:"true"`
	SampleRate float64 `split_words:"true" default:"1"`
}

type Option func(*options)

type options struct {
	sentry   bool
	exporter sdkTrace.SpanExporter
}

// WithSentry forwards spans to Sentry. sentry.Init must run first.
func WithSentry() Option {
	return func(o *options) { o.sentry = true }
}

func WithExporter(exp sdkTrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

// Setup installs the global tracer provider and propagator. Callers must
// Shutdown the returned provider to flush spans.
func Setup(ctx context.Context, c Config, service, version string, opts ...Option) (*sdkTrace.TracerProvider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	exporter := o.exporter
	switch {
	case exporter != nil:
	case c.Enabled:
		exp, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP exporter: %w", err)
		}
		exporter = exp
	default:
		exporter = NewNoOpSpanExporter()
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		semconv.ServiceVersion(version),
	)

	providerOpts := []sdkTrace.TracerProviderOption{
		sdkTrace.WithBatcher(exporter),
		sdkTrace.WithSampler(NewForceBasedSampler(c.SampleRate)),
		sdkTrace.WithResource(res),
	}
	propagators := []propagation.TextMapPropagator{propagation.TraceContext{}, propagation.Baggage{}}
	if o.sentry {
		providerOpts = append(providerOpts, sdkTrace.WithSpanProcessor(sentryotel.NewSentrySpanProcessor()))
		propagators = append(propagators, sentryotel.NewSentryPropagator())
	}

	tp := sdkTrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagators...))
	return tp, nil
}
