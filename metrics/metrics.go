// Package metrics exposes Prometheus counters of the object store service.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels of object operations.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// ObjectMetrics counts object store traffic.
type ObjectMetrics struct {
	Reads        *prometheus.CounterVec
	Writes       *prometheus.CounterVec
	BytesWritten prometheus.Counter
}

// NewObjectMetrics creates the object counters and registers them with registerer.
func NewObjectMetrics(namespace string, registerer prometheus.Registerer) (*ObjectMetrics, error) {
	m := &ObjectMetrics{
		Reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_reads_total",
			Help:      "Object reads by result.",
		}, []string{"result"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_writes_total",
			Help:      "Object writes by result.",
		}, []string{"result"}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_written_bytes_total",
			Help:      "Cipher text bytes accepted for storage.",
		}),
	}

	for _, c := range []prometheus.Collector{m.Reads, m.Writes, m.BytesWritten} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRead counts one read. A nil receiver is a no-op.
func (m *ObjectMetrics) ObserveRead(result string) {
	if m == nil {
		return
	}
	m.Reads.WithLabelValues(result).Inc()
}

// ObserveWrite counts one write of size bytes. A nil receiver is a no-op.
func (m *ObjectMetrics) ObserveWrite(result string, size int) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.BytesWritten.Add(float64(size))
	}
}

// MetricsServer serves a private Prometheus registry on its own listener.
type MetricsServer struct {
	Registry *prometheus.Registry
	Objects  *ObjectMetrics
	srv      *http.Server
}

// New creates a metrics server for namespace listening on addr.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace})); err != nil {
		return nil, err
	}

	objects, err := NewObjectMetrics(namespace, registry)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		Registry: registry,
		Objects:  objects,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Handler returns the /metrics handler.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

// ListenAndServe blocks serving metrics.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv.Addr == "" {
		return errors.New("metrics listen address not configured")
	}
	return m.srv.ListenAndServe()
}

// Shutdown stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
