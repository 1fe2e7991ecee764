package timetable

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPortal(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func requireFetchError(t *testing.T, err error, reason FetchReason) *FetchError {
	t.Helper()
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr), "expected *FetchError, got %T: %v", err, err)
	assert.Equal(t, reason, fetchErr.Reason)
	return fetchErr
}

func TestFetch_Success(t *testing.T) {
	srv := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "student1" || pass != "hunter22" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "planner-test", r.UserAgent())
		_, _ = w.Write([]byte(samplePage))
	})

	f := NewFetcher(FetcherConfig{URL: srv.URL, UserAgent: "planner-test"}, srv.Client())
	page, err := f.Fetch(context.Background(), Credentials{Username: "student1", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, samplePage, page)
}

func TestFetch_StatusRejected(t *testing.T) {
	srv := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	f := NewFetcher(FetcherConfig{URL: srv.URL}, srv.Client())
	_, err := f.Fetch(context.Background(), Credentials{Username: "u", Password: "wrong"})
	fetchErr := requireFetchError(t, err, ReasonAuth)
	assert.Equal(t, http.StatusUnauthorized, fetchErr.StatusCode)
}

func TestFetch_BodyMarkerRejected(t *testing.T) {
	srv := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Invalid username or password.</p></body></html>"))
	})

	f := NewFetcher(FetcherConfig{URL: srv.URL}, srv.Client())
	_, err := f.Fetch(context.Background(), Credentials{Username: "u", Password: "p"})
	requireFetchError(t, err, ReasonAuth)
}

func TestFetch_ServerError(t *testing.T) {
	srv := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	f := NewFetcher(FetcherConfig{URL: srv.URL}, srv.Client())
	_, err := f.Fetch(context.Background(), Credentials{Username: "u", Password: "p"})
	fetchErr := requireFetchError(t, err, ReasonStatus)
	assert.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
}

func TestFetch_SingleAttempt(t *testing.T) {
	calls := 0
	srv := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	f := NewFetcher(FetcherConfig{URL: srv.URL}, srv.Client())
	_, err := f.Fetch(context.Background(), Credentials{Username: "u", Password: "p"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	f := NewFetcher(FetcherConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client())
	_, err := f.Fetch(context.Background(), Credentials{Username: "u", Password: "p"})
	requireFetchError(t, err, ReasonTimeout)
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFetcher(FetcherConfig{URL: url}, nil)
	_, err := f.Fetch(context.Background(), Credentials{Username: "u", Password: "p"})
	requireFetchError(t, err, ReasonNetwork)
}

func TestFetch_MissingCredentials(t *testing.T) {
	f := NewFetcher(FetcherConfig{URL: "http://127.0.0.1:1"}, nil)
	_, err := f.Fetch(context.Background(), Credentials{Username: " ", Password: "p"})
	requireFetchError(t, err, ReasonCredentials)

	_, err = f.Fetch(context.Background(), Credentials{Username: "u"})
	requireFetchError(t, err, ReasonCredentials)
}

func TestFetchError_DoesNotLeakPassword(t *testing.T) {
	srv := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	f := NewFetcher(FetcherConfig{URL: srv.URL}, srv.Client())
	_, err := f.Fetch(context.Background(), Credentials{Username: "u", Password: "s3cr3t-pass"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "s3cr3t-pass")
}
