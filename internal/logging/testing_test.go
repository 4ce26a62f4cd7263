package logging

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTestLogger_Assertions(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Info(ctx, "document opened", zap.String("path", "main.go"), zap.Int("folds", 3))

	tl.AssertLogged(t, zapcore.InfoLevel, "opened")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "opened")
	tl.AssertField(t, "document opened", "path", "main.go")
	tl.AssertField(t, "document opened", "folds", int64(3))

	tl.Reset()
	tl.AssertNotLogged(t, zapcore.InfoLevel, "opened")
}

func TestTestLogger_TraceCorrelation(t *testing.T) {
	provider := trace.NewTracerProvider(trace.WithSampler(trace.AlwaysSample()))
	ctx, span := provider.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	tl := NewTestLogger()
	tl.Warn(ctx, "batch dropped")
	tl.AssertTraceCorrelation(t, "batch dropped")
}
