// Package flowid implements the 64-bit flow identifier used by flow tables.
//
// A FlowID packs a slot index and a generation tag into one signed integer:
//
//	[generation:35][index:28]   (bit 63 clear for every encoded id)
//
// The index addresses a physical slot in the table's backing storage. The
// generation comes from the table's monotonic id counter, so an id stays
// unique for the table's lifetime even after its slot is reused.
//
// The layout is part of the public contract: ids crossing a foreign-call
// boundary are passed as raw int64 values and decoded with the same shift and
// mask on the other side.
package flowid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuapare/flowkit/internal/bitsize"
)

// FlowID identifies one flow instance stored in a flow table.
// Only equality comparison is meaningful.
type FlowID int64

const (
	// IndexShift is the number of low bits holding the slot index.
	IndexShift = bitsize.IndexShift

	// IndexMask extracts the slot index from an id.
	IndexMask = bitsize.IndexMask

	// MaxGeneration is the largest generation an encoded id can carry while
	// staying non-negative.
	MaxGeneration = (1 << (63 - IndexShift)) - 1
)

// NullID means "no flow". It is a reserved constant: it is negative, and
// Encode only produces non-negative ids for generations in [0, MaxGeneration],
// so no (index, generation) pair maps onto it.
const NullID FlowID = -839193346820535158

// ErrSyntax is returned by Parse for malformed input.
var ErrSyntax = errors.New("flowid: invalid syntax")

// Encode packs index and generation into a FlowID.
//
// index must be in [0, IndexMask] and generation in [0, MaxGeneration]; bits
// outside those ranges are discarded.
func Encode(index int, generation int64) FlowID {
	return FlowID((generation&MaxGeneration)<<IndexShift | int64(index&IndexMask))
}

// Decode splits id into its slot index and generation.
// The result is meaningless for NullID.
func (id FlowID) Decode() (index int, generation int64) {
	return int(int64(id) & IndexMask), int64(id) >> IndexShift
}

// Index returns the slot index field.
func (id FlowID) Index() int {
	return int(int64(id) & IndexMask)
}

// Generation returns the generation field.
func (id FlowID) Generation() int64 {
	return int64(id) >> IndexShift
}

// IsNull reports whether id is NullID.
func (id FlowID) IsNull() bool {
	return id == NullID
}

// String renders id as "index@generation", or "NULL" for NullID.
func (id FlowID) String() string {
	if id == NullID {
		return "NULL"
	}
	index, gen := id.Decode()
	return strconv.Itoa(index) + "@" + strconv.FormatInt(gen, 10)
}

// Parse reads a FlowID in any of the forms flowctl prints: a decimal raw
// value, a 0x-prefixed hex raw value, "index@generation", or "NULL".
func Parse(s string) (FlowID, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") {
		return NullID, nil
	}

	if idx, gen, ok := strings.Cut(s, "@"); ok {
		index, err := strconv.Atoi(idx)
		if err != nil || index < 0 || index > IndexMask {
			return NullID, fmt.Errorf("%w: index %q", ErrSyntax, idx)
		}
		generation, err := strconv.ParseInt(gen, 10, 64)
		if err != nil || generation < 0 || generation > MaxGeneration {
			return NullID, fmt.Errorf("%w: generation %q", ErrSyntax, gen)
		}
		return Encode(index, generation), nil
	}

	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		raw, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return NullID, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		//nolint:gosec // G115: raw bit pattern is reinterpreted as signed.
		return FlowID(int64(raw)), nil
	}

	raw, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return NullID, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return FlowID(raw), nil
}
