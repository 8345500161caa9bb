package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ironsheep/pagetext-mcp/internal/document"
)

func TestNewProvider_RecordsThroughSDK(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	spans := tracetest.NewInMemoryExporter()

	p, err := NewProvider(ctx,
		WithReader(reader),
		WithSpanExporter(spans),
		WithServiceName("pagetext-test"),
		WithServiceVersion("1.2.3"),
	)
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	m := p.Metrics()
	docCtx, doc := m.StartDocument(ctx, "a.pdf")
	_, page := m.StartPage(docCtx, 0)
	m.RecordPage(docCtx, document.FilterStats{Kept: 3, Dropped: 1}, false, time.Millisecond, "", nil)
	EndSpan(page, errors.New("boom"))
	m.RecordDocument(docCtx, nil)
	EndSpan(doc, nil)

	rm := collect(t, reader)
	assert.EqualValues(t, 1, sumBy(t, rm[MetricPages], KeyOutcome, attribute.StringValue(OutcomeOK)))
	assert.EqualValues(t, 3, sumBy(t, rm[MetricTokens], KeyKept, attribute.BoolValue(true)))
	assert.EqualValues(t, 1, sumBy(t, rm[MetricDocuments], KeyOutcome, attribute.StringValue(OutcomeOK)))

	require.NoError(t, p.tracers.ForceFlush(ctx))
	stubs := spans.GetSpans()
	require.Len(t, stubs, 2)
	byName := map[string]tracetest.SpanStub{}
	for _, s := range stubs {
		byName[s.Name] = s
	}
	assert.Equal(t, codes.Error, byName["extract.page"].Status.Code)
	assert.Equal(t, byName["extract.document"].SpanContext.SpanID(), byName["extract.page"].Parent.SpanID())

	res := byName["extract.document"].Resource
	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "pagetext-test", name.AsString())
	version, ok := res.Set().Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", version.AsString())
}

func TestNewProvider_Exporters(t *testing.T) {
	for _, protocol := range []string{ProtocolGRPC, ProtocolHTTP} {
		t.Run(protocol, func(t *testing.T) {
			p, err := NewProvider(context.Background(),
				WithProtocol(protocol),
				WithEndpoint("127.0.0.1:1"),
				WithInterval(time.Hour),
			)
			require.NoError(t, err, "exporters connect lazily")
			require.NotNil(t, p.Metrics())

			// Nothing is reachable; only check that shutdown returns.
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestNewProvider_UnsupportedProtocol(t *testing.T) {
	_, err := NewProvider(context.Background(), WithProtocol("udp"))
	assert.ErrorContains(t, err, "udp")
}
