package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := Setup(ProviderConfig{
		ServiceName: "activity-guard-test",
		SampleRatio: 1,
		Processors:  []sdktrace.SpanProcessor{sdktrace.NewSimpleSpanProcessor(exporter)},
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name)

	var found bool
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			found = kv.Value.AsString() == "activity-guard-test"
		}
	}
	assert.True(t, found)

	carrier := propagation.HeaderCarrier{}
	ctx, span2 := otel.Tracer("test").Start(context.Background(), "op2")
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	span2.End()
	assert.NotEmpty(t, carrier.Get("traceparent"))

	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_RejectsBadRatio(t *testing.T) {
	_, err := Setup(ProviderConfig{SampleRatio: 1.5})
	assert.Error(t, err)
}
