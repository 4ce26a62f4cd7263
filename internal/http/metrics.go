package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foldd/internal/folding"
)

// InstrumentationName scopes the API's OTEL instruments.
const InstrumentationName = "github.com/fyrsmithlabs/foldd/internal/http"

// apiMetrics records API traffic and the fold changes it hands to clients.
//
// Metrics:
//   - foldd.http.requests{route,method,status}
//   - foldd.http.request.duration{route,method}
//   - foldd.http.fold_changes{route,change} - removals, insertions and updates returned
type apiMetrics struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	foldChanges metric.Int64Counter
}

// newAPIMetrics creates the instruments on meter. An instrument that cannot
// be created is logged and left unrecorded.
func newAPIMetrics(meter metric.Meter, logger *zap.Logger) *apiMetrics {
	m := &apiMetrics{}
	var err error

	if m.requests, err = meter.Int64Counter("foldd.http.requests",
		metric.WithDescription("API requests by route, method and status code"),
		metric.WithUnit("{request}"),
	); err != nil {
		logger.Warn("creating request counter", zap.Error(err))
	}
	if m.duration, err = meter.Float64Histogram("foldd.http.request.duration",
		metric.WithDescription("API request latency by route and method"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	); err != nil {
		logger.Warn("creating duration histogram", zap.Error(err))
	}
	if m.foldChanges, err = meter.Int64Counter("foldd.http.fold_changes",
		metric.WithDescription("Fold removals, insertions and updates returned to clients"),
		metric.WithUnit("{region}"),
	); err != nil {
		logger.Warn("creating fold change counter", zap.Error(err))
	}
	return m
}

// middleware counts and times requests per route. Document IDs and fold
// handles stay out of the labels because the route pattern is used.
func (m *apiMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			ctx := c.Request().Context()

			if m.requests != nil {
				m.requests.Add(ctx, 1, metric.WithAttributes(
					attribute.String("route", route),
					attribute.String("method", method),
					attribute.String("status", strconv.Itoa(statusOf(c, err))),
				))
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
					attribute.String("route", route),
					attribute.String("method", method),
				))
			}
			return err
		}
	}
}

// recordBatch counts the fold changes a response carries.
func (m *apiMetrics) recordBatch(ctx context.Context, route string, batch folding.Batch) {
	if m.foldChanges == nil {
		return
	}
	for change, n := range map[string]int{
		"removal":   len(batch.Removals),
		"insertion": len(batch.Insertions),
		"update":    len(batch.Updates),
	} {
		if n > 0 {
			m.foldChanges.Add(ctx, int64(n), metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("change", change),
			))
		}
	}
}

// statusOf is the status the client will see. A handler error is written by
// echo's error handler after the middleware returns.
func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
