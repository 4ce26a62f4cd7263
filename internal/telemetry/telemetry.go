package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	logglobal "go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// State summarizes what the exporters are doing.
type State string

const (
	StateOff      State = "off"
	StateOK       State = "ok"
	StateDegraded State = "degraded"
	StateStopped  State = "stopped"
)

// Health is reported by foldd's /health endpoint and logged at startup.
type Health struct {
	State    State    `json:"state"`
	Problems []string `json:"problems,omitempty"`
}

// signal is one exported stream: traces or metrics.
type signal interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

type namedSignal struct {
	name string
	signal
}

// Telemetry owns the providers that fold passes, edits and API requests
// report through.
//
// A provider that cannot be built does not fail New. Health turns degraded
// and that signal keeps using the global no-op provider.
type Telemetry struct {
	config  *Config
	traces  *trace.TracerProvider
	metrics *sdkmetric.MeterProvider

	mu       sync.Mutex
	stopped  bool
	problems []string
}

// New builds the providers described by cfg and installs them globally, so
// folding.StartSpan and the other package-level helpers pick them up.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res, err := newResource(cfg)
	if err != nil {
		t.problem("resource", err)
		return t, nil
	}

	if tp, err := newTracerProvider(ctx, cfg, res, o.traceExporter); err != nil {
		t.problem("traces", err)
	} else {
		t.traces = tp
		otel.SetTracerProvider(tp)
	}
	// mp is nil when metrics are switched off.
	if mp, err := newMeterProvider(ctx, cfg, res, o.metricExporter); err != nil {
		t.problem("metrics", err)
	} else if mp != nil {
		t.metrics = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Tracer returns a tracer for scope, falling back to the global provider.
func (t *Telemetry) Tracer(scope string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.traces == nil {
		return otel.GetTracerProvider().Tracer(scope, opts...)
	}
	return t.traces.Tracer(scope, opts...)
}

// Meter returns a meter for scope, falling back to the global provider.
func (t *Telemetry) Meter(scope string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.metrics == nil {
		return otel.GetMeterProvider().Meter(scope, opts...)
	}
	return t.metrics.Meter(scope, opts...)
}

// LoggerProvider returns the OTEL log provider for the zap bridge, or nil
// when nothing is exported.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if !t.IsEnabled() {
		return nil
	}
	return logglobal.GetLoggerProvider()
}

// IsEnabled reports whether telemetry is configured on and not yet shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil || !t.config.Enabled {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

// Health returns the exporters' state and anything that went wrong starting
// them.
func (t *Telemetry) Health() Health {
	if t == nil {
		return Health{State: StateOff}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	h := Health{Problems: append([]string(nil), t.problems...)}
	switch {
	case t.stopped:
		h.State = StateStopped
	case t.config == nil || !t.config.Enabled:
		h.State = StateOff
	case len(t.problems) > 0:
		h.State = StateDegraded
	default:
		h.State = StateOK
	}
	return h
}

// ForceFlush exports whatever the providers are holding.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	return t.each(func(s namedSignal) error {
		if err := s.ForceFlush(ctx); err != nil {
			return fmt.Errorf("%s flush: %w", s.name, err)
		}
		return nil
	})
}

// Shutdown flushes and stops the providers. Without a deadline on ctx the
// configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
		defer cancel()
	}

	err := t.each(func(s namedSignal) error {
		if err := s.Shutdown(ctx); err != nil {
			return fmt.Errorf("%s shutdown: %w", s.name, err)
		}
		return nil
	})

	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return err
}

// each runs fn on every live provider and joins the errors.
func (t *Telemetry) each(fn func(namedSignal) error) error {
	if t == nil {
		return nil
	}
	var signals []namedSignal
	if t.traces != nil {
		signals = append(signals, namedSignal{"traces", t.traces})
	}
	if t.metrics != nil {
		signals = append(signals, namedSignal{"metrics", t.metrics})
	}

	var errs []error
	for _, s := range signals {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Telemetry) problem(stage string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.problems = append(t.problems, fmt.Sprintf("%s: %v", stage, err))
}
