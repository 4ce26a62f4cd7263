// Package telemetry provides OpenTelemetry instrumentation for foldd.
//
// # Overview
//
// Traces and metrics are exported over OTLP (gRPC or HTTP/protobuf) to a
// collector. The folding reconciler and the HTTP API record spans and metrics
// through the global providers this package installs.
//
// # Usage
//
//	cfg := telemetry.FromConfig(appCfg.Telemetry, version)
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	meter := tel.Meter("foldd.http")
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: "grpc"        # or "http/protobuf"
//	  service_name: "foldd"
//	  sampling_rate: 1.0
//	  export_interval: "15s"
//
// # Error Handling
//
// Telemetry failures do not stop foldd. If an exporter cannot be created
// Health reports StateDegraded, /health shows the problem, and the global
// no-op provider stays in place for that signal.
//
// # Testing
//
// TestTelemetry keeps everything in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	tt.Install(t) // folding.StartSpan uses the global tracer
//	metrics, _ := folding.NewMetrics(tt.Meter(folding.InstrumentationName))
//	...
//	total, _ := tt.Int64Sum(t, "folding.batch.insertions")
package telemetry
