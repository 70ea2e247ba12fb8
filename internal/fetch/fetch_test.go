package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hibpindex/sha1t48/internal/fetch"
	"github.com/hibpindex/sha1t48/internal/hibperrors"
)

func TestFetchRange_Success(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "true", r.Header.Get("Add-Padding"))
		w.Write([]byte("0000000000000000000000000000000000:5\r\n"))
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{Workers: 4, BaseURL: srv.URL + "/range/"})
	body, err := f.FetchRange(context.Background(), 0x00000)
	require.NoError(t, err)
	assert.Contains(t, string(body), "0000000000000000000000000000000000:5")
	assert.Equal(t, int64(1), hits.Load())
}

func TestFetchRange_RetriesTransientThenSucceeds(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA:1\r\n"))
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{
		Workers:        4,
		BaseURL:        srv.URL + "/range/",
		BackoffCeiling: 10 * time.Millisecond,
	})
	body, err := f.FetchRange(context.Background(), 0x00000)
	require.NoError(t, err)
	assert.Contains(t, string(body), "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA:1")
	assert.Equal(t, int64(3), attempts.Load())
}

func TestFetchRange_FatalStatusNotRetried(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{
		Workers:        4,
		BaseURL:        srv.URL + "/range/",
		BackoffCeiling: 10 * time.Millisecond,
	})
	_, err := f.FetchRange(context.Background(), 0xABCDE)
	require.Error(t, err)

	var fatal *hibperrors.FatalHTTPError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, http.StatusNotFound, fatal.StatusCode)
	assert.Equal(t, int64(1), attempts.Load())
}

func TestTransientStatusClassification(t *testing.T) {
	assert.True(t, hibperrors.TransientStatus(http.StatusRequestTimeout))
	assert.True(t, hibperrors.TransientStatus(http.StatusTooManyRequests))
	assert.True(t, hibperrors.TransientStatus(http.StatusTooEarly))
	assert.True(t, hibperrors.TransientStatus(http.StatusInternalServerError))
	assert.True(t, hibperrors.TransientStatus(http.StatusBadGateway))
	assert.False(t, hibperrors.TransientStatus(http.StatusNotFound))
	assert.False(t, hibperrors.TransientStatus(http.StatusOK))
}

func TestFatalHTTPClassification(t *testing.T) {
	assert.True(t, hibperrors.IsFatalHTTP(http.StatusNotFound))
	assert.True(t, hibperrors.IsFatalHTTP(http.StatusForbidden))
	assert.False(t, hibperrors.IsFatalHTTP(http.StatusTooManyRequests))
	assert.False(t, hibperrors.IsFatalHTTP(http.StatusOK))
	assert.False(t, hibperrors.IsFatalHTTP(http.StatusInternalServerError))
}

func TestFetchRange_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{Workers: 1, BaseURL: srv.URL + "/range/", PerAttemptTimeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchRange(ctx, 0x00000)
	require.Error(t, err)
}
