// Package hibperrors implements the shared transient/fatal error
// classification used by both the fetcher and the builder pipeline, per
// spec §7.
package hibperrors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FatalHTTPError marks an HTTP response status that must abort the build for
// the offending prefix rather than be retried: any 4xx other than the
// transient set (408, 425, 429).
type FatalHTTPError struct {
	Prefix     string
	StatusCode int
}

func (e *FatalHTTPError) Error() string {
	return fmt.Sprintf("hibp: fatal HTTP status %d fetching prefix %s", e.StatusCode, e.Prefix)
}

// CorruptShardError wraps a shard-store corruption signal surfaced from the
// verifier, never auto-repaired per spec §7.
type CorruptShardError struct {
	Prefix uint32
	Cause  error
}

func (e *CorruptShardError) Error() string {
	return fmt.Sprintf("hibp: corrupt shard %05X: %v", e.Prefix, e.Cause)
}

func (e *CorruptShardError) Unwrap() error { return e.Cause }

// MissingShardError distinguishes "index incomplete" (the shard file is
// absent) from "not breached" (the shard exists and was searched).
type MissingShardError struct {
	Prefix uint32
	Cause  error
}

func (e *MissingShardError) Error() string {
	return fmt.Sprintf("hibp: missing shard %05X: %v", e.Prefix, e.Cause)
}

func (e *MissingShardError) Unwrap() error { return e.Cause }

// TransientStatus reports whether an HTTP status code should be retried:
// request timeouts, upstream rate limiting, and 5xx server errors.
func TransientStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return statusCode >= 500
}

// IsFatalHTTP reports whether statusCode is a 4xx outside the transient set,
// i.e. a per-prefix-fatal HTTP status per spec §4.4/§7.
func IsFatalHTTP(statusCode int) bool {
	return statusCode >= 400 && statusCode < 500 && !TransientStatus(statusCode)
}

// Transient reports whether err represents a network-level failure that
// should be retried: connection errors, timeouts, and temporary DNS
// failures. It does not inspect HTTP status codes — use TransientStatus for
// those.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
