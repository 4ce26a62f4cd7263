package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Trace(t *testing.T) {
	provider := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithSyncer(tracetest.NewInMemoryExporter()),
	)
	ctx, span := provider.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	keys := map[string]bool{}
	for _, f := range ContextFields(ctx) {
		keys[f.Key] = true
	}
	assert.True(t, keys["trace_id"])
	assert.True(t, keys["span_id"])
	assert.True(t, keys["trace_sampled"])
}

func TestDocumentContext(t *testing.T) {
	ctx := WithRevision(WithDocumentID(context.Background(), "2b1e-77"), 12)

	assert.Equal(t, "2b1e-77", DocumentIDFromContext(ctx))
	rev, ok := RevisionFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, 12, rev)

	_, ok = RevisionFromContext(context.Background())
	assert.False(t, ok)
}

func TestWithIDs_IgnoreMalformed(t *testing.T) {
	for _, id := range []string{"", "has space", "semi;colon", strings.Repeat("a", maxIDLen+1)} {
		ctx := WithDocumentID(context.Background(), id)
		assert.Empty(t, DocumentIDFromContext(ctx), "%q", id)
		ctx = WithRequestID(context.Background(), id)
		assert.Empty(t, RequestIDFromContext(ctx), "%q", id)
	}
	assert.Equal(t, "req_1", RequestIDFromContext(WithRequestID(context.Background(), "req_1")))
}

func TestLoggerContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}
