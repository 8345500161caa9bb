// Package telemetry records extraction metrics and spans with OpenTelemetry.
//
// Instruments are created from the providers handed to New. NewProvider
// builds SDK providers that export over OTLP; Default uses the global otel
// providers, which are no-ops until the process installs real ones.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ironsheep/pagetext-mcp/internal/document"
)

// ScopeName is the instrumentation scope for meters and tracers.
const ScopeName = "github.com/ironsheep/pagetext-mcp"

// Metric names.
const (
	MetricPages        = "pagetext.pages"
	MetricTokens       = "pagetext.tokens"
	MetricPageDuration = "pagetext.page.duration"
	MetricDocuments    = "pagetext.documents"
)

// Attribute keys.
const (
	KeyOutcome = "pagetext.outcome"
	KeyStage   = "pagetext.stage"
	KeyKept    = "pagetext.kept"
	KeyPage    = "pagetext.page"
	KeySource  = "pagetext.source"
	KeyPages   = "pagetext.page_count"
)

// Outcome values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeBlank = "blank"
)

// Metrics holds the instruments used by the extraction pipeline.
type Metrics struct {
	pages        metric.Int64Counter
	tokens       metric.Int64Counter
	documents    metric.Int64Counter
	pageDuration metric.Float64Histogram
	tracer       trace.Tracer
}

// New creates the instruments on the given providers.
func New(mp metric.MeterProvider, tp trace.TracerProvider) (*Metrics, error) {
	meter := mp.Meter(ScopeName)
	m := &Metrics{tracer: tp.Tracer(ScopeName)}

	var err error
	if m.pages, err = meter.Int64Counter(MetricPages,
		metric.WithDescription("Pages processed, by outcome"),
		metric.WithUnit("{page}")); err != nil {
		return nil, err
	}
	if m.tokens, err = meter.Int64Counter(MetricTokens,
		metric.WithDescription("Recognized words kept or dropped by the confidence filter"),
		metric.WithUnit("{token}")); err != nil {
		return nil, err
	}
	if m.documents, err = meter.Int64Counter(MetricDocuments,
		metric.WithDescription("Documents extracted, by outcome"),
		metric.WithUnit("{document}")); err != nil {
		return nil, err
	}
	if m.pageDuration, err = meter.Float64Histogram(MetricPageDuration,
		metric.WithDescription("Time to render, recognize and filter one page"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

// Default builds Metrics on the global otel providers.
func Default() *Metrics {
	m, err := New(otel.GetMeterProvider(), otel.GetTracerProvider())
	if err != nil {
		otel.Handle(err)
		m = &Metrics{tracer: otel.GetTracerProvider().Tracer(ScopeName)}
	}
	return m
}

// StartDocument opens a span covering one document extraction.
func (m *Metrics) StartDocument(ctx context.Context, source string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "extract.document",
		trace.WithAttributes(attribute.String(KeySource, source)))
}

// StartPage opens a span covering one page.
func (m *Metrics) StartPage(ctx context.Context, page int) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "extract.page",
		trace.WithAttributes(attribute.Int(KeyPage, page)))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordPage counts one finished page. stage names the failing step when err
// is non-nil.
func (m *Metrics) RecordPage(ctx context.Context, stats document.FilterStats, blank bool, d time.Duration, stage string, err error) {
	outcome := OutcomeOK
	attrs := []attribute.KeyValue{}
	switch {
	case err != nil:
		outcome = OutcomeError
		attrs = append(attrs, attribute.String(KeyStage, stage))
	case blank:
		outcome = OutcomeBlank
	}
	attrs = append(attrs, attribute.String(KeyOutcome, outcome))

	if m.pages != nil {
		m.pages.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.pageDuration != nil {
		m.pageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	}
	if m.tokens != nil && err == nil {
		m.tokens.Add(ctx, int64(stats.Kept), metric.WithAttributes(attribute.Bool(KeyKept, true)))
		m.tokens.Add(ctx, int64(stats.Dropped), metric.WithAttributes(attribute.Bool(KeyKept, false)))
	}
}

// RecordDocument counts one finished document.
func (m *Metrics) RecordDocument(ctx context.Context, err error) {
	if m.documents == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.documents.Add(ctx, 1, metric.WithAttributes(attribute.String(KeyOutcome, outcome)))
}
