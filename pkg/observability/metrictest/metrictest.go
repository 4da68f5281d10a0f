// Package metrictest reads Prometheus metric values in tests.
package metrictest

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// CounterValue reads the current value of a CounterVec for the given labels.
func CounterValue(t testing.TB, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	return metricValue(t, c).GetCounter().GetValue()
}

// CounterTotal reads the current value of a plain Counter.
func CounterTotal(t testing.TB, c prometheus.Counter) float64 {
	t.Helper()
	return metricValue(t, c).GetCounter().GetValue()
}

// HistogramCount reads the observation count from a HistogramVec.
func HistogramCount(t testing.TB, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	return metricValue(t, obs.(prometheus.Metric)).GetHistogram().GetSampleCount()
}

// GaugeValue reads the current value of a Gauge.
func GaugeValue(t testing.TB, g prometheus.Gauge) float64 {
	t.Helper()
	return metricValue(t, g).GetGauge().GetValue()
}

func metricValue(t testing.TB, m prometheus.Metric) *dto.Metric {
	t.Helper()
	out := &dto.Metric{}
	if err := m.Write(out); err != nil {
		t.Fatalf("writing metric: %v", err)
	}
	return out
}
