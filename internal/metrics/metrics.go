package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "planner"

// Metrics holds the Prometheus collectors for the server.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	DecryptFailures   prometheus.Counter
	TimetableImports  *prometheus.CounterVec
	ImportedEvents    prometheus.Counter
	ImportItemsFailed prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		DecryptFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "note_decrypt_failures_total",
			Help:      "Records whose ciphertext could not be decrypted",
		}),
		TimetableImports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "timetable",
				Name:      "imports_total",
				Help:      "Timetable import attempts by outcome",
			},
			[]string{"outcome"},
		),
		ImportedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timetable",
			Name:      "events_imported_total",
			Help:      "Calendar events stored by timetable imports",
		}),
		ImportItemsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timetable",
			Name:      "events_failed_total",
			Help:      "Parsed timetable events that could not be stored",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCounter.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveDecryptFailure counts one unreadable record. Safe on a nil receiver.
func (m *Metrics) ObserveDecryptFailure() {
	if m == nil {
		return
	}
	m.DecryptFailures.Inc()
}

// ObserveImport records one import attempt. Safe on a nil receiver.
func (m *Metrics) ObserveImport(outcome string, stored, failed int) {
	if m == nil {
		return
	}
	m.TimetableImports.WithLabelValues(outcome).Inc()
	m.ImportedEvents.Add(float64(stored))
	m.ImportItemsFailed.Add(float64(failed))
}
