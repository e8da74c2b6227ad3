package telemetry_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/basakesin/mri-defacing-platform/internal/infra/telemetry"
)

func newTestMetrics(t *testing.T) (*telemetry.Metrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m, err := telemetry.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func TestMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRun(ctx, telemetry.Run{Method: "pydeface", Outcome: "success", Duration: 2 * time.Second, UploadBytes: 4096})
	m.RecordRun(ctx, telemetry.Run{Method: "pydeface", Outcome: "failed", Class: "execution", Duration: time.Second, UploadBytes: 1024})

	rm := collect(t, reader)

	runs := findMetric(rm, telemetry.MetricRuns)
	if runs == nil {
		t.Fatalf("%s metric not found", telemetry.MetricRuns)
	}
	sum, ok := runs.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("runs data = %T; want Sum[int64]", runs.Data)
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("runs data points = %d; want 2 (one per outcome)", len(sum.DataPoints))
	}

	failures := findMetric(rm, telemetry.MetricFailures)
	if failures == nil {
		t.Fatalf("%s metric not found", telemetry.MetricFailures)
	}
	fsum := failures.Data.(metricdata.Sum[int64])
	if len(fsum.DataPoints) != 1 || fsum.DataPoints[0].Value != 1 {
		t.Fatalf("failures = %+v; want one point with value 1", fsum.DataPoints)
	}
	if v, ok := fsum.DataPoints[0].Attributes.Value(attribute.Key("class")); !ok || v.AsString() != "execution" {
		t.Errorf("failure class = %v; want execution", v.AsString())
	}

	dur := findMetric(rm, telemetry.MetricDuration)
	if dur == nil {
		t.Fatalf("%s metric not found", telemetry.MetricDuration)
	}
	hist := dur.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 || hist.DataPoints[0].Sum != 3 {
		t.Errorf("duration = %+v; want count 2 sum 3", hist.DataPoints)
	}

	size := findMetric(rm, telemetry.MetricUploadSize)
	if size == nil {
		t.Fatalf("%s metric not found", telemetry.MetricUploadSize)
	}
	if got := size.Data.(metricdata.Histogram[int64]).DataPoints[0].Sum; got != 5120 {
		t.Errorf("upload size sum = %d; want 5120", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *telemetry.Metrics
	m.RecordRun(context.Background(), telemetry.Run{Method: "pydeface"})
}

func TestDefault_NotNil(t *testing.T) {
	t.Parallel()

	if telemetry.Default() == nil {
		t.Fatal("Default() = nil")
	}
	if telemetry.Tracer() == nil {
		t.Fatal("Tracer() = nil")
	}
}
