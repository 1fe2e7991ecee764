package timetable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBodyBytes = 5 << 20
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// authRejectionMarkers are body fragments the portal serves instead of a
// timetable when credentials are refused.
var authRejectionMarkers = []string{
	"invalid username or password",
	"access denied",
	"login failed",
}

// FetchReason classifies a FetchError for logs and metrics. Callers are not
// expected to branch on it.
type FetchReason string

const (
	ReasonCredentials FetchReason = "credentials"
	ReasonNetwork     FetchReason = "network"
	ReasonTimeout     FetchReason = "timeout"
	ReasonStatus      FetchReason = "status"
	ReasonAuth        FetchReason = "auth"
)

// FetchError is the only error Fetch returns.
type FetchError struct {
	Reason     FetchReason
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	msg := "failed to fetch timetable: " + string(e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Credentials are the portal login for a single request. They are never
// stored.
type Credentials struct {
	Username string
	Password string
}

// FetcherConfig configures the portal client.
type FetcherConfig struct {
	URL          string
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Fetcher retrieves the raw timetable page with HTTP Basic authentication.
type Fetcher struct {
	cfg    FetcherConfig
	client *http.Client
}

// NewFetcher constructs a Fetcher. A nil client uses http.DefaultClient.
func NewFetcher(cfg FetcherConfig, client *http.Client) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{cfg: cfg, client: client}
}

// Fetch performs one GET against the portal. Every failure, including an
// expired deadline, is reported as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, creds Credentials) (string, error) {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return "", &FetchError{Reason: ReasonCredentials, Cause: errors.New("username and password are required")}
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return "", &FetchError{Reason: ReasonNetwork, Cause: err}
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{Reason: classifyTransportError(ctx, err), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &FetchError{Reason: ReasonAuth, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{Reason: ReasonStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return "", &FetchError{Reason: classifyTransportError(ctx, err), StatusCode: resp.StatusCode, Cause: err}
	}

	page := string(body)
	if isAuthRejection(page) {
		return "", &FetchError{Reason: ReasonAuth, StatusCode: resp.StatusCode, Cause: errors.New("portal rejected the credentials")}
	}
	return page, nil
}

func classifyTransportError(ctx context.Context, err error) FetchReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonNetwork
}

func isAuthRejection(page string) bool {
	lower := strings.ToLower(page)
	for _, marker := range authRejectionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
