// Package shard implements the sha1t48 on-disk file-layout contract: one
// file per 20-bit prefix, fixed-width unframed 6-byte records, sorted
// ascending. This is the contract shared between the builder and the
// verifier — see spec §4.2.
package shard

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/hibpindex/sha1t48/internal/codec"
)

// maxPathBufBytes bounds the stack buffer ReadShardInto builds its path
// into; generous enough for any realistic dir plus the fixed "<hex5>.bin"
// suffix without spilling to the heap.
const maxPathBufBytes = 512

// MaxShardBytes bounds the largest credible shard. The worst observed HIBP
// prefix file is well under this; exceeding it on read is treated as a fatal
// corruption signal rather than silently growing a buffer (spec §4.2, §9).
const MaxShardBytes = 64 * 1024

// ErrShardTooLarge is returned by ReadShardInto when a shard's size exceeds
// MaxShardBytes.
type ErrShardTooLarge struct {
	Prefix uint32
	Size   int64
}

func (e *ErrShardTooLarge) Error() string {
	return fmt.Sprintf("shard %05X: size %d exceeds max buffer %d", e.Prefix, e.Size, MaxShardBytes)
}

// ErrCorruptShard is returned when a shard's byte length is not a multiple
// of the record width.
type ErrCorruptShard struct {
	Prefix uint32
	Size   int
}

func (e *ErrCorruptShard) Error() string {
	return fmt.Sprintf("shard %05X: size %d is not a multiple of %d bytes", e.Prefix, e.Size, codec.RecordSize)
}

// PathInto builds the absolute path "<dir>/<hex5(prefix)>.bin" into buf,
// returning the number of bytes written. buf must have capacity for
// len(dir) + 1 + codec.PrefixLen + 4; callers needing a guaranteed bound can
// size buf at 512 bytes per spec §4.2. ReadShardInto builds its path this
// way, into a fixed-size array, instead of through Path's filepath.Join.
func PathInto(buf []byte, dir string, prefix uint32) int {
	n := copy(buf, dir)
	buf[n] = '/'
	n++
	var hex [codec.PrefixLen]byte
	codec.Hex5(prefix, &hex)
	n += copy(buf[n:], hex[:])
	n += copy(buf[n:], ".bin")
	return n
}

// Path returns the shard path for prefix within dir. Prefer PathInto on hot
// paths to avoid the allocation this convenience wrapper incurs.
func Path(dir string, prefix uint32) string {
	var hex [codec.PrefixLen]byte
	codec.Hex5(prefix, &hex)
	return filepath.Join(dir, string(hex[:])+".bin")
}

// WriteShard serializes records (already sorted ascending) to
// "<dir>/<hex5(prefix)>.bin". It writes to a temporary sibling file first and
// renames into place, so a reader never observes a partially written shard:
// the target path is either absent or holds the complete file, satisfying
// the resume-safety requirement of spec §4.2/§5.
func WriteShard(dir string, prefix uint32, records [][codec.RecordSize]byte) error {
	target := Path(dir, prefix)
	tmp := target + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, len(records)*codec.RecordSize)
	for _, r := range records {
		buf = append(buf, r[:]...)
	}

	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// ReadShardInto opens the shard for prefix within dir and reads its full
// contents into buf, returning the number of bytes read. buf should be
// sized at least MaxShardBytes; a shard larger than len(buf) is reported as
// *ErrShardTooLarge. The path is built into a fixed 512-byte array via
// PathInto and handed to os.Open via unsafe.String, without a separate string
// copy. The call is not allocation-free: the *os.File keeps the name, so the
// path array escapes to the heap, and os.Open allocates the file handle.
func ReadShardInto(dir string, prefix uint32, buf []byte) (int, error) {
	var pathBuf [maxPathBufBytes]byte
	pathLen := PathInto(pathBuf[:], dir, prefix)
	path := unsafe.String(&pathBuf[0], pathLen)

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	total := 0
	for {
		if total == len(buf) {
			// Buffer exactly full: confirm there isn't more data before
			// declaring success, since a shard this size is suspicious.
			var probe [1]byte
			n, _ := f.Read(probe[:])
			if n > 0 {
				return total, &ErrShardTooLarge{Prefix: prefix, Size: int64(total) + 1}
			}
			break
		}
		n, err := f.Read(buf[total:])
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}

	if total%codec.RecordSize != 0 {
		return total, &ErrCorruptShard{Prefix: prefix, Size: total}
	}
	return total, nil
}

// ShardExistsNonempty reports whether the shard for prefix exists and is
// non-empty. An empty (zero-record) shard is a valid "not present" result
// and is distinct from a missing shard — see spec §7.
func ShardExistsNonempty(dir string, prefix uint32) bool {
	info, err := os.Stat(Path(dir, prefix))
	if err != nil {
		return false
	}
	return info.Size() > 0
}

// ShardExists reports whether the shard file for prefix exists at all
// (including a legitimately empty zero-record shard).
func ShardExists(dir string, prefix uint32) bool {
	_, err := os.Stat(Path(dir, prefix))
	return err == nil
}

// IsSorted reports whether buf, interpreted as fixed 6-byte big-endian
// records, is monotonically non-decreasing byte-lexicographically. Used by
// tests and by the builder's decode-time monotonicity check (spec §4.5,
// §9 "sort on decode").
func IsSorted(buf []byte) bool {
	n := len(buf) / codec.RecordSize
	for i := 1; i < n; i++ {
		prev := buf[(i-1)*codec.RecordSize : i*codec.RecordSize]
		cur := buf[i*codec.RecordSize : (i+1)*codec.RecordSize]
		if bytes.Compare(cur, prev) < 0 {
			return false
		}
	}
	return true
}
