// Package bitsize holds the bit-level sizing helpers and index-field
// constants shared by the flow id codec and the flow table.
package bitsize

import (
	"errors"
	"math/bits"
)

const (
	// IndexShift is the width of the slot-index field in a flow id.
	IndexShift = 28

	// IndexMask extracts the slot-index field (0x0FFFFFFF).
	IndexMask = (1 << IndexShift) - 1

	// MaxTableSize is the largest capacity a flow table may be built with.
	MaxTableSize = IndexMask
)

// ErrInvalidCapacity is returned for capacities outside [1, MaxTableSize].
var ErrInvalidCapacity = errors.New("bitsize: capacity out of range")

// LeadingZeros counts the leading zero bits of x in its 32-bit two's-complement
// form. LeadingZeros(0) is 32 and any negative input yields 0.
func LeadingZeros(x int32) int {
	return bits.LeadingZeros32(uint32(x))
}

// NextPosPowerOfTwo returns the smallest power of two >= x.
//
// x must lie in [1, MaxTableSize]; anything else returns ErrInvalidCapacity.
func NextPosPowerOfTwo(x int) (int, error) {
	if x < 1 || x > MaxTableSize {
		return 0, ErrInvalidCapacity
	}
	//nolint:gosec // G115: x-1 < 2^28, fits in int32.
	return 1 << (32 - LeadingZeros(int32(x-1))), nil
}
