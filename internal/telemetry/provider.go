package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// OTLP export protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// DefaultServiceName is the service.name resource attribute.
const DefaultServiceName = "pagetext"

// Provider owns the SDK meter and tracer providers that export the pipeline's
// metrics and spans over OTLP.
type Provider struct {
	meters  *sdkmetric.MeterProvider
	tracers *sdktrace.TracerProvider
	metrics *Metrics
}

type providerOptions struct {
	endpoint       string
	protocol       string
	interval       time.Duration
	serviceName    string
	serviceVersion string

	reader sdkmetric.Reader
	spans  sdktrace.SpanExporter
}

// ProviderOption configures NewProvider.
type ProviderOption func(*providerOptions)

// WithEndpoint sets the collector address as host:port. When unset the
// exporters read OTEL_EXPORTER_OTLP_ENDPOINT, falling back to localhost.
func WithEndpoint(endpoint string) ProviderOption {
	return func(o *providerOptions) { o.endpoint = endpoint }
}

// WithProtocol selects ProtocolGRPC (the default) or ProtocolHTTP.
func WithProtocol(protocol string) ProviderOption {
	return func(o *providerOptions) {
		if protocol != "" {
			o.protocol = protocol
		}
	}
}

// WithInterval sets how often metrics are exported. Zero keeps the SDK default.
func WithInterval(d time.Duration) ProviderOption {
	return func(o *providerOptions) { o.interval = d }
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(name string) ProviderOption {
	return func(o *providerOptions) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) ProviderOption {
	return func(o *providerOptions) { o.serviceVersion = version }
}

// WithReader replaces the OTLP metric exporter with reader.
func WithReader(reader sdkmetric.Reader) ProviderOption {
	return func(o *providerOptions) { o.reader = reader }
}

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) ProviderOption {
	return func(o *providerOptions) { o.spans = exp }
}

// NewProvider builds meter and tracer providers exporting over OTLP and the
// pipeline instruments on top of them. Exporters connect lazily, so an
// unreachable collector does not fail here.
func NewProvider(ctx context.Context, opts ...ProviderOption) (*Provider, error) {
	o := providerOptions{
		protocol:    ProtocolGRPC,
		serviceName: DefaultServiceName,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.protocol != ProtocolGRPC && o.protocol != ProtocolHTTP {
		return nil, fmt.Errorf("unsupported telemetry protocol %q", o.protocol)
	}

	res, err := buildResource(ctx, &o)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	reader := o.reader
	if reader == nil {
		exp, err := newMetricExporter(ctx, &o)
		if err != nil {
			return nil, err
		}
		var readerOpts []sdkmetric.PeriodicReaderOption
		if o.interval > 0 {
			readerOpts = append(readerOpts, sdkmetric.WithInterval(o.interval))
		}
		reader = sdkmetric.NewPeriodicReader(exp, readerOpts...)
	}

	spans := o.spans
	if spans == nil {
		if spans, err = newSpanExporter(ctx, &o); err != nil {
			_ = reader.Shutdown(ctx)
			return nil, err
		}
	}

	p := &Provider{
		meters: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		),
		tracers: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spans),
			sdktrace.WithResource(res),
		),
	}
	if p.metrics, err = New(p.meters, p.tracers); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	return p, nil
}

// Metrics returns the pipeline instruments bound to this provider.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Shutdown flushes pending metrics and spans and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.meters.Shutdown(ctx),
		p.tracers.Shutdown(ctx),
	)
}

func buildResource(ctx context.Context, o *providerOptions) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(o.serviceName)}
	if o.serviceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(o.serviceVersion))
	}
	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
}

func newMetricExporter(ctx context.Context, o *providerOptions) (sdkmetric.Exporter, error) {
	var (
		exp sdkmetric.Exporter
		err error
	)
	switch o.protocol {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if o.endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(o.endpoint))
		}
		exp, err = otlpmetrichttp.New(ctx, opts...)
	default:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if o.endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(o.endpoint))
		}
		exp, err = otlpmetricgrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s metrics exporter: %w", o.protocol, err)
	}
	return exp, nil
}

func newSpanExporter(ctx context.Context, o *providerOptions) (sdktrace.SpanExporter, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch o.protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if o.endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(o.endpoint))
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	default:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if o.endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(o.endpoint))
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s span exporter: %w", o.protocol, err)
	}
	return exp, nil
}
