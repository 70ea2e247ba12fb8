// Package verify implements the sha1t48 lookup path: password -> SHA1 ->
// (prefix, needle) -> shard path -> read -> binary search -> boolean, per
// spec §4.3. Three call shapes share one synchronous core:
//
//   - Checker.IsBreached: fully synchronous, the reference latency path.
//   - Checker.IsBreachedOffloaded: hands the read+search to a bounded
//     goroutine pool as a single unit of blocking work.
//   - Checker.IsBreachedDispatched: hands the read+search to a fixed pool
//     of OS-thread-pinned dispatcher goroutines with thread-local buffers,
//     the idiomatic Go rendition of a completion-queue backend.
package verify

import (
	"crypto/sha1"
	"errors"
	"os"

	"github.com/hibpindex/sha1t48/internal/hibperrors"
	"github.com/hibpindex/sha1t48/internal/shard"
)

const recordSize = 6

// HIBPDataDirEnv is the environment variable test harnesses may consult to
// locate an existing index (spec §6). Not required by the production API.
const HIBPDataDirEnv = "HIBP_DATA_DIR"

// DataDirFromEnv returns the value of HIBP_DATA_DIR, or "" if unset.
func DataDirFromEnv() string {
	return os.Getenv(HIBPDataDirEnv)
}

// Checker answers is-breached queries against an on-disk sha1t48 index
// rooted at Dir. It holds no mutable state between lookups; a Checker is
// safe for concurrent use across all three call shapes.
type Checker struct {
	Dir string
}

// New constructs a Checker rooted at dir.
func New(dir string) *Checker {
	return &Checker{Dir: dir}
}

// splitHash computes SHA1(password) and returns the 20-bit shard prefix and
// the 48-bit needle (bytes 2..8 of the digest), per spec §3/§4.3.
func splitHash(password string) (prefix uint32, needle [recordSize]byte) {
	h := sha1.Sum([]byte(password))
	prefix = uint32(h[0])<<12 | uint32(h[1])<<4 | uint32(h[2])>>4
	copy(needle[:], h[2:8])
	return prefix, needle
}

// lookup is the shared synchronous core used by all three variants: build
// the shard path, read the whole shard into buf, binary-search it. buf must
// have length at least shard.MaxShardBytes.
func lookup(dir string, prefix uint32, needle [recordSize]byte, buf []byte) (bool, error) {
	n, err := shard.ReadShardInto(dir, prefix, buf)
	if err != nil {
		if os.IsNotExist(err) {
			return false, &hibperrors.MissingShardError{Prefix: prefix, Cause: err}
		}
		var corrupt *shard.ErrCorruptShard
		var tooLarge *shard.ErrShardTooLarge
		if errors.As(err, &corrupt) || errors.As(err, &tooLarge) {
			return false, &hibperrors.CorruptShardError{Prefix: prefix, Cause: err}
		}
		return false, err
	}
	return search48(buf[:n], needle), nil
}

// IsBreached performs the fully synchronous lookup: one call thread computes
// the hash, opens and reads the shard, and searches it. Reference latency
// ~1.4µs warm per spec §4.3.
func (c *Checker) IsBreached(password string) (bool, error) {
	prefix, needle := splitHash(password)
	var buf [shard.MaxShardBytes]byte
	return lookup(c.Dir, prefix, needle, buf[:])
}

