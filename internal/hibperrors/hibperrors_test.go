package hibperrors_test

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hibpindex/sha1t48/internal/hibperrors"
)

func TestTransientStatus(t *testing.T) {
	cases := map[int]bool{
		200: false,
		400: false,
		403: false,
		404: false,
		408: true,
		425: true,
		429: true,
		500: true,
		503: true,
	}
	for status, want := range cases {
		assert.Equal(t, want, hibperrors.TransientStatus(status), "status %d", status)
	}
}

func TestIsFatalHTTP(t *testing.T) {
	assert.True(t, hibperrors.IsFatalHTTP(404))
	assert.True(t, hibperrors.IsFatalHTTP(403))
	assert.False(t, hibperrors.IsFatalHTTP(429))
	assert.False(t, hibperrors.IsFatalHTTP(500))
	assert.False(t, hibperrors.IsFatalHTTP(200))
}

func TestTransient(t *testing.T) {
	assert.False(t, hibperrors.Transient(nil))
	assert.False(t, hibperrors.Transient(errors.New("boring")))
	assert.True(t, hibperrors.Transient(&net.DNSError{IsTimeout: true}))
	assert.True(t, hibperrors.Transient(&net.DNSError{IsTemporary: true}))

	var timeoutErr net.Error = &fakeNetError{timeout: true}
	assert.True(t, hibperrors.Transient(timeoutErr))
}

func TestFatalHTTPError(t *testing.T) {
	err := &hibperrors.FatalHTTPError{Prefix: "ABCDE", StatusCode: 404}
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "ABCDE")
}

func TestCorruptShardError_Unwrap(t *testing.T) {
	cause := errors.New("bad length")
	err := &hibperrors.CorruptShardError{Prefix: 0x1, Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "00001")
}

func TestMissingShardError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("open: %w", errors.New("no such file"))
	err := &hibperrors.MissingShardError{Prefix: 0x2, Cause: cause}
	assert.ErrorIs(t, err, cause)
}

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }
