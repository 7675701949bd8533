package testsupport

import (
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

// MetricValue sums every series of metricName in the default registry whose
// labels include labels. Counters and gauges contribute their value, histograms
// their sample count. A metric that was never observed reads as zero.
func MetricValue(t *testing.T, metricName string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	i := sort.Search(len(families), func(i int) bool { return families[i].GetName() >= metricName })
	if i == len(families) || families[i].GetName() != metricName {
		return 0
	}

	var total float64
	for _, m := range families[i].GetMetric() {
		if !hasLabels(m, labels) {
			continue
		}
		switch {
		case m.GetCounter() != nil:
			total += m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			total += m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			total += float64(m.GetHistogram().GetSampleCount())
		}
	}
	return total
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// AssertMetricDelta runs fn and asserts metricName moved by exactly delta.
// Tests using it must not run in parallel with others touching the same series.
func AssertMetricDelta(t *testing.T, metricName string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := MetricValue(t, metricName, labels)
	fn()
	after := MetricValue(t, metricName, labels)

	assert.Equal(t, delta, after-before, "metric %s%v delta mismatch", metricName, labels)
}
