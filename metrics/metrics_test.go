package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewObjectMetrics("test", registry)
	require.NoError(t, err)

	m.ObserveRead(ResultOK)
	m.ObserveRead(ResultNotFound)
	m.ObserveRead(ResultNotFound)
	m.ObserveWrite(ResultOK, 100)
	m.ObserveWrite(ResultError, 50)

	values := gather(t, registry)
	assert.Equal(t, 1.0, values[`test_object_reads_total{result="ok"}`])
	assert.Equal(t, 2.0, values[`test_object_reads_total{result="not_found"}`])
	assert.Equal(t, 1.0, values[`test_object_writes_total{result="error"}`])
	assert.Equal(t, 100.0, values["test_object_written_bytes_total"])

	var nilMetrics *ObjectMetrics
	nilMetrics.ObserveRead(ResultOK)
	nilMetrics.ObserveWrite(ResultOK, 1)
}

func TestObjectMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewObjectMetrics("test", registry)
	require.NoError(t, err)
	_, err = NewObjectMetrics("test", registry)
	assert.Error(t, err)
}

func TestMetricsServer_Handler(t *testing.T) {
	srv, err := New("market", "")
	require.NoError(t, err)
	srv.Objects.ObserveWrite(ResultOK, 10)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `market_object_writes_total{result="ok"} 1`)
	assert.Contains(t, string(body), "market_object_written_bytes_total 10")

	assert.Error(t, srv.ListenAndServe())
}

// gather flattens counters into name{label="value"} keys.
func gather(t *testing.T, registry *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			for _, label := range metric.GetLabel() {
				key += fmt.Sprintf(`{%s="%s"}`, label.GetName(), label.GetValue())
			}
			values[key] = metric.GetCounter().GetValue()
		}
	}
	return values
}
