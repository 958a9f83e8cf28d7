package flowtable

import (
	"errors"
	"fmt"

	"github.com/joshuapare/flowkit/internal/bitsize"
)

var (
	// ErrInvalidCapacity indicates a capacity outside [1, MaxTableSize].
	ErrInvalidCapacity = bitsize.ErrInvalidCapacity

	// ErrTableFull indicates Put was called with every usable slot occupied.
	ErrTableFull = errors.New("flowtable: table full")

	// ErrNotFound indicates an id that does not name a live flow: NullID, an
	// index outside the backing storage, an empty slot, or a stale id.
	ErrNotFound = errors.New("flowtable: flow not found")

	// ErrStaleID is reported when the id's slot is occupied by a later flow.
	// It wraps ErrNotFound.
	ErrStaleID = fmt.Errorf("%w: stale id", ErrNotFound)

	// ErrIndexOutOfRange indicates a physical slot index outside the backing storage.
	ErrIndexOutOfRange = errors.New("flowtable: slot index out of range")

	// ErrIDSpaceExhausted indicates the generation counter reached flowid.MaxGeneration.
	ErrIDSpaceExhausted = errors.New("flowtable: id space exhausted")
)
