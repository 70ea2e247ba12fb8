package verify

import "bytes"

// search48 performs a branch-minimal binary search over data interpreted as
// a sequence of fixed 6-byte big-endian records, per spec §4.3. Comparison
// is byte-lexicographic, which equals big-endian numeric order for
// fixed-width unsigned integers. Duplicates are tolerated: the search only
// needs to land on any matching record.
func search48(data []byte, needle [recordSize]byte) bool {
	n := len(data) / recordSize
	lo, hi := 0, n
	for lo < hi {
		mid := lo + (hi-lo)/2
		off := mid * recordSize
		switch bytes.Compare(data[off:off+recordSize], needle[:]) {
		case 0:
			return true
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}
