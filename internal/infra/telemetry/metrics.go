// Package telemetry holds the OpenTelemetry instruments for defacing runs.
// Instruments come from the global providers unless the caller passes its own,
// so the process records nothing until the host installs an SDK.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/basakesin/mri-defacing-platform/internal/infra/logging"
)

// ScopeName is the instrumentation scope for meters and tracers.
const ScopeName = logging.Repo

const (
	MetricRuns       = "deface.runs"
	MetricFailures   = "deface.failures"
	MetricDuration   = "deface.run.duration"
	MetricUploadSize = "deface.upload.size"
)

// Run describes one finished pipeline run.
type Run struct {
	Method      string
	Outcome     string
	Class       string // empty on success
	Duration    time.Duration
	UploadBytes int64
}

// Metrics records run counters and histograms. A nil *Metrics records nothing.
type Metrics struct {
	runs       metric.Int64Counter
	failures   metric.Int64Counter
	duration   metric.Float64Histogram
	uploadSize metric.Int64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runs, err := meter.Int64Counter(MetricRuns,
		metric.WithDescription("Number of defacing runs"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(MetricFailures,
		metric.WithDescription("Number of failed defacing runs"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Duration of a defacing run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	uploadSize, err := meter.Int64Histogram(MetricUploadSize,
		metric.WithDescription("Size of uploaded volumes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runs:       runs,
		failures:   failures,
		duration:   duration,
		uploadSize: uploadSize,
	}, nil
}

// Default returns instruments on the global meter provider, or no-op
// instruments if they cannot be created.
func Default() *Metrics {
	m, err := NewMetrics(otel.Meter(ScopeName))
	if err != nil {
		m, _ = NewMetrics(noop.NewMeterProvider().Meter(ScopeName))
	}
	return m
}

// RecordRun adds one run to the counters and histograms.
func (m *Metrics) RecordRun(ctx context.Context, r Run) {
	if m == nil {
		return
	}
	method := attribute.String("method", r.Method)

	m.runs.Add(ctx, 1, metric.WithAttributes(method, attribute.String("outcome", r.Outcome)))
	m.duration.Record(ctx, r.Duration.Seconds(), metric.WithAttributes(method))
	m.uploadSize.Record(ctx, r.UploadBytes, metric.WithAttributes(method))
	if r.Class != "" {
		m.failures.Add(ctx, 1, metric.WithAttributes(method, attribute.String("class", r.Class)))
	}
}

// Tracer returns the tracer for pipeline spans from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}
