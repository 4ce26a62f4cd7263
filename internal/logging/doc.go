// Package logging provides structured logging on top of zap.
//
// Logger adds a Trace level below Debug, writes console or JSON lines to
// stderr, can forward records to OpenTelemetry through the otelzap bridge, and
// samples repeated messages per level (errors are never sampled).
//
// Context-aware methods attach correlation fields automatically:
//
//	ctx = logging.WithDocumentID(ctx, doc.ID())
//	ctx = logging.WithRevision(ctx, 7)
//	logger.Info(ctx, "document changed", zap.Int("bytes", n))
//
// produces
//
//	{"level":"info","msg":"document changed","document.id":"4f1c...","document.revision":7,"bytes":812}
//
// plus trace_id and span_id when ctx carries a recording span.
//
// Tests use TestLogger, which records every entry in memory:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "opened")
//	tl.AssertLogged(t, zapcore.InfoLevel, "opened")
package logging
