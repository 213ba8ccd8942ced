package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorefrontMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefront(reg)

	m.ObserveTransition("REVIEW", "PAYMENT_IN_PROGRESS")
	m.ObserveTransition("REVIEW", "PAYMENT_IN_PROGRESS")
	m.IncReconciliationFailure()
	m.ObserveGatewayCall("orders.create", "ok", 20*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	transitions := findMetricFamily(mfs, "checkout_transitions_total")
	require.NotNil(t, transitions)
	require.Len(t, transitions.GetMetric(), 1)
	assert.Equal(t, float64(2), transitions.GetMetric()[0].GetCounter().GetValue())

	failures := findMetricFamily(mfs, "checkout_reconciliation_failures_total")
	require.NotNil(t, failures)
	assert.Equal(t, float64(1), failures.GetMetric()[0].GetCounter().GetValue())

	calls := findMetricFamily(mfs, "gateway_call_duration_seconds")
	require.NotNil(t, calls)
	metric := calls.GetMetric()[0]
	assert.True(t, matchesLabel(metric.GetLabel(), "operation", "orders.create"))
	assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
}

func TestNilStorefrontIsNoop(t *testing.T) {
	var m *Storefront
	m.ObserveTransition("a", "b")
	m.IncReconciliationFailure()
	m.ObserveGatewayCall("x", "ok", time.Second)

	NewStorefront(nil).ObserveTransition("a", "b")
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewStorefront(reg).ObserveTransition("COLLECTING_ADDRESS", "REVIEW")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `checkout_transitions_total{from="COLLECTING_ADDRESS",to="REVIEW"} 1`)
}

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveDuration("reconciliation-report", 250*time.Millisecond)
	m.IncSuccess("reconciliation-report")
	m.IncFailure("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	success := findMetricFamily(mfs, "job_success")
	require.NotNil(t, success)
	assert.True(t, matchesLabel(success.GetMetric()[0].GetLabel(), "job", "reconciliation-report"))

	failure := findMetricFamily(mfs, "job_failure")
	require.NotNil(t, failure)
	assert.True(t, matchesLabel(failure.GetMetric()[0].GetLabel(), "job", "unknown"))
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
