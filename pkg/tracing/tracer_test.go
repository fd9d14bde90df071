package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestSampler_FollowsParentDecision(t *testing.T) {
	traceID := trace.TraceID{0x01}
	sampledParent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x02},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	never := Sampler(0)
	root := never.ShouldSample(sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: traceID, Name: "root"})
	assert.Equal(t, sdktrace.Drop, root.Decision)

	child := never.ShouldSample(sdktrace.SamplingParameters{ParentContext: sampledParent, TraceID: traceID, Name: "child"})
	assert.Equal(t, sdktrace.RecordAndSample, child.Decision)

	always := Sampler(1)
	root = always.ShouldSample(sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: traceID, Name: "root"})
	assert.Equal(t, sdktrace.RecordAndSample, root.Decision)
}

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(Config{Environment: "staging", SettlementChain: 5000, LedgerBackend: "postgres"})
	set := attribute.NewSet(attrs...)

	name, ok := set.Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "tip-service", name.AsString())

	chain, ok := set.Value("tip.settlement_chain")
	require.True(t, ok)
	assert.Equal(t, int64(5000), chain.AsInt64())

	backend, ok := set.Value("tip.ledger_backend")
	require.True(t, ok)
	assert.Equal(t, "postgres", backend.AsString())

	unset := attribute.NewSet(resourceAttributes(Config{ServiceName: "tips-eu"})...)
	_, ok = unset.Value("tip.ledger_backend")
	assert.False(t, ok)
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
