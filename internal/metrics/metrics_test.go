package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/notes/{title}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/notes/a", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/notes/b", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("/notes/{title}", "204")))
}

func TestObserveImport(t *testing.T) {
	m := New()
	m.ObserveImport("success", 3, 1)
	m.ObserveImport("fetch_failed", 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TimetableImports.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TimetableImports.WithLabelValues("fetch_failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ImportedEvents))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportItemsFailed))
}

func TestObserve_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecryptFailure()
		m.ObserveImport("success", 1, 0)
	})
}
