package folding

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Logger wraps zap.Logger with folding-specific structured logging.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a new Logger. If logger is nil, uses a no-op logger.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("folding")}
}

// Installed logs attachment to an editor.
func (l *Logger) Installed(ctx context.Context, enabled bool) {
	if l == nil || l.logger == nil {
		return
	}
	fields := append([]zap.Field{zap.Bool("enabled", enabled)}, l.traceFields(ctx)...)
	l.logger.Info("folding installed", fields...)
}

// Uninstalled logs detachment from an editor.
func (l *Logger) Uninstalled(ctx context.Context, removed int) {
	if l == nil || l.logger == nil {
		return
	}
	fields := append([]zap.Field{zap.Int("removed", removed)}, l.traceFields(ctx)...)
	l.logger.Info("folding uninstalled", fields...)
}

// Initialized logs a full reset of the visible set.
func (l *Logger) Initialized(ctx context.Context, batch Batch, duration time.Duration) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Int("removed", len(batch.Removals)),
		zap.Int("regions", len(batch.Insertions)),
		zap.Duration("duration", duration),
	}
	fields = append(fields, l.traceFields(ctx)...)
	l.logger.Info("folding initialized", fields...)
}

// BatchApplied logs a batch the sink accepted.
func (l *Logger) BatchApplied(ctx context.Context, op string, batch Batch, repaired, visible int, duration time.Duration) {
	if l == nil || l.logger == nil {
		return
	}
	fields := l.batchFields(ctx, op, batch)
	fields = append(fields,
		zap.Int("repaired", repaired),
		zap.Int("visible", visible),
		zap.Duration("duration", duration),
	)
	l.logger.Debug("batch applied", fields...)
}

// BatchDropped logs a batch the sink refused. The visible set is unchanged.
func (l *Logger) BatchDropped(ctx context.Context, op string, batch Batch, err error) {
	if l == nil || l.logger == nil {
		return
	}
	fields := l.batchFields(ctx, op, batch)
	fields = append(fields, zap.Error(err))
	l.logger.Warn("batch dropped", fields...)
}

// MappingFailures logs nodes skipped because their lines are stale.
func (l *Logger) MappingFailures(ctx context.Context, count int, last error) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{zap.Int("count", count)}
	if last != nil {
		fields = append(fields, zap.NamedError("last_error", last))
	}
	fields = append(fields, l.traceFields(ctx)...)
	l.logger.Debug("skipped unmappable nodes", fields...)
}

// RegionsRepaired logs regions rescued by start-offset repair.
func (l *Logger) RegionsRepaired(ctx context.Context, repaired, displaced int) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Int("repaired", repaired),
		zap.Int("displaced", displaced),
	}
	fields = append(fields, l.traceFields(ctx)...)
	l.logger.Debug("regions repaired", fields...)
}

// Error logs an error with context.
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...zap.Field) {
	if l == nil || l.logger == nil {
		return
	}
	allFields := l.traceFields(ctx)
	allFields = append(allFields, zap.Error(err))
	allFields = append(allFields, fields...)
	l.logger.Error(msg, allFields...)
}

// Debug logs a debug message with context.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	if l == nil || l.logger == nil {
		return
	}
	allFields := l.traceFields(ctx)
	allFields = append(allFields, fields...)
	l.logger.Debug(msg, allFields...)
}

func (l *Logger) batchFields(ctx context.Context, op string, batch Batch) []zap.Field {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("removals", len(batch.Removals)),
		zap.Int("insertions", len(batch.Insertions)),
		zap.Int("updates", len(batch.Updates)),
	}
	return append(fields, l.traceFields(ctx)...)
}

// traceFields extracts trace context from the context.
func (l *Logger) traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	sc := span.SpanContext()
	fields := []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
	if sc.IsSampled() {
		fields = append(fields, zap.Bool("trace_sampled", true))
	}
	return fields
}
