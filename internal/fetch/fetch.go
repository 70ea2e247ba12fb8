// Package fetch implements the HIBP range API client: bounded-concurrency
// HTTP GETs with retry/backoff and a shared connection pool, per spec §4.4.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/hibpindex/sha1t48/internal/codec"
	"github.com/hibpindex/sha1t48/internal/hibperrors"
)

const rangeURLBase = "https://api.pwnedpasswords.com/range/"

// maxAttempts is the total number of attempts including the first, per
// spec §4.4.
const maxAttempts = 10

// backoffBaseDelay is the base of the exponential backoff schedule:
// 100ms * 2^(attempt-1), full jitter.
const backoffBaseDelay = 100 * time.Millisecond

// Fetcher issues range lookups against the HIBP API with retry, backoff, and
// a connection pool sized to the caller's worker count.
type Fetcher struct {
	client  *retryablehttp.Client
	baseURL string
}

// Config controls Fetcher construction.
type Config struct {
	// Workers sizes the connection pool (MaxIdleConnsPerHost); it should
	// match the builder's worker count.
	Workers int
	// BackoffCeiling caps the full-jitter backoff delay. Zero selects the
	// spec-suggested default of 30s.
	BackoffCeiling time.Duration
	// PerAttemptTimeout bounds a single HTTP round trip. Zero selects a
	// generous default.
	PerAttemptTimeout time.Duration
	// Logger receives retry diagnostics; nil disables logging from
	// retryablehttp (this package logs its own classification decisions
	// through the builder instead).
	Logger retryablehttp.LeveledLogger
	// BaseURL overrides the upstream range-API base URL. Empty selects the
	// real HIBP endpoint; tests point this at an httptest.Server.
	BaseURL string
}

// New constructs a Fetcher whose underlying transport pool is sized to
// cfg.Workers, matching the teacher's own practice of sizing
// MaxIdleConnsPerHost to the worker count.
func New(cfg Config) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 64
	}
	ceiling := cfg.BackoffCeiling
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	perAttempt := cfg.PerAttemptTimeout
	if perAttempt <= 0 {
		perAttempt = 30 * time.Second
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.MaxIdleConnsPerHost = cfg.Workers
	transport.MaxIdleConns = cfg.Workers

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   perAttempt,
	}
	client.RetryMax = maxAttempts - 1
	client.Logger = cfg.Logger
	client.CheckRetry = checkRetry
	client.Backoff = fullJitterBackoff(ceiling)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = rangeURLBase
	}

	return &Fetcher{client: client, baseURL: baseURL}
}

// FetchRange issues GET https://api.pwnedpasswords.com/range/<hex5(prefix)>
// and returns the response body on HTTP 200. A 4xx outside the transient set
// is returned as *hibperrors.FatalHTTPError without further retry attempts
// (enforced by checkRetry); transient failures are retried internally by the
// underlying retryablehttp.Client up to the configured maximum.
func (f *Fetcher) FetchRange(ctx context.Context, prefix uint32) ([]byte, error) {
	var hex [codec.PrefixLen]byte
	codec.Hex5(prefix, &hex)
	prefixStr := string(hex[:])

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+prefixStr, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: building request for prefix %s: %w", prefixStr, err)
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyDoError(err, prefixStr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &hibperrors.FatalHTTPError{Prefix: prefixStr, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading body for prefix %s: %w", prefixStr, err)
	}
	return body, nil
}

// classifyDoError wraps the terminal error retryablehttp.Do surfaces once
// its retry budget for transient failures is exhausted. Fatal HTTP statuses
// never reach here: checkRetry stops the loop with a nil error for those,
// so FetchRange sees them as a normal (non-OK) response instead.
func classifyDoError(err error, prefixStr string) error {
	return fmt.Errorf("fetch: prefix %s: %w", prefixStr, err)
}

// checkRetry implements spec §4.4's transient/fatal classification on top of
// retryablehttp's default policy: network errors and 408/425/429/5xx retry;
// any other 4xx is fatal and returned immediately without further attempts.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp == nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusOK {
		return false, nil
	}
	if hibperrors.TransientStatus(resp.StatusCode) {
		return true, nil
	}
	// Fatal 4xx: stop retrying immediately. FetchRange converts this into
	// *hibperrors.FatalHTTPError once control returns past client.Do.
	return false, nil
}

// fullJitterBackoff implements spec §4.4's schedule exactly:
// 100ms * 2^(attempt-1), full jitter, capped at ceiling. retryablehttp calls
// this with attemptNum starting at 0 for the first retry.
func fullJitterBackoff(ceiling time.Duration) retryablehttp.Backoff {
	return func(_min, _max time.Duration, attemptNum int, _resp *http.Response) time.Duration {
		exp := backoffBaseDelay * time.Duration(1<<uint(attemptNum))
		if exp > ceiling || exp <= 0 {
			exp = ceiling
		}
		return time.Duration(rand.Int63n(int64(exp) + 1))
	}
}
