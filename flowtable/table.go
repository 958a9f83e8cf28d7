package flowtable

import (
	"fmt"
	"iter"

	"github.com/joshuapare/flowkit/flowid"
	"github.com/joshuapare/flowkit/internal/bitsize"
)

// MaxTableSize is the largest capacity New accepts.
const MaxTableSize = bitsize.MaxTableSize

// Table is a fixed-capacity slot arena of flow entries addressed by FlowID.
//
// A Table has no internal locking. It must be owned by one goroutine at a
// time; share it by handing the whole table over or by locking around it.
type Table struct {
	maxFlows int
	mask     int
	slots    []Entry

	// free holds unused slot indices below maxFlows, popped from the end.
	free []int32

	idCounter int64
	occupied  int
}

// New builds a table holding at most maxFlows live flows.
// Backing storage is rounded up to the next power of two.
func New(maxFlows int) (*Table, error) {
	size, err := bitsize.NextPosPowerOfTwo(maxFlows)
	if err != nil {
		return nil, fmt.Errorf("max flows %d: %w", maxFlows, err)
	}

	t := &Table{
		maxFlows: maxFlows,
		mask:     size - 1,
		slots:    make([]Entry, size),
		free:     make([]int32, maxFlows),
	}
	for i := range t.slots {
		t.slots[i].reset()
	}
	// Lowest index on top so fresh tables fill slots 0, 1, 2, ...
	for i := range t.free {
		//nolint:gosec // G115: maxFlows <= MaxTableSize < 2^31.
		t.free[i] = int32(maxFlows - 1 - i)
	}
	return t, nil
}

// MaxFlows returns the configured capacity.
func (t *Table) MaxFlows() int { return t.maxFlows }

// BackingSize returns the number of physical slots.
func (t *Table) BackingSize() int { return len(t.slots) }

// Mask returns BackingSize()-1.
func (t *Table) Mask() int { return t.mask }

// Occupied returns the number of live flows.
func (t *Table) Occupied() int { return t.occupied }

// Put stores a copy of match in a free slot and returns the new flow's id.
// The entry's sequence starts at the id counter value and its linked id is NullID.
func (t *Table) Put(match []byte) (flowid.FlowID, error) {
	if t.occupied == t.maxFlows {
		return flowid.NullID, ErrTableFull
	}
	if t.idCounter == flowid.MaxGeneration {
		return flowid.NullID, ErrIDSpaceExhausted
	}

	last := len(t.free) - 1
	index := int(t.free[last])
	t.free = t.free[:last]

	t.idCounter++
	id := flowid.Encode(index, t.idCounter)
	t.slots[index].store(id, match, t.idCounter)
	t.occupied++
	return id, nil
}

// find validates id against the current slot state without allocating.
func (t *Table) find(id flowid.FlowID) (*Entry, error) {
	if id == flowid.NullID {
		return nil, ErrNotFound
	}
	index := id.Index()
	if index > t.mask {
		return nil, ErrNotFound
	}
	e := &t.slots[index]
	if e.empty() {
		return nil, ErrNotFound
	}
	if e.id != id {
		return nil, ErrStaleID
	}
	return e, nil
}

// Get returns the live entry for id. It does not change the entry's sequence.
//
// The error wraps ErrNotFound when id does not name a live flow, and is also
// ErrStaleID when the slot now holds a different flow.
func (t *Table) Get(id flowid.FlowID) (*Entry, error) {
	e, err := t.find(id)
	if err != nil {
		return nil, fmt.Errorf("get %v: %w", id, err)
	}
	return e, nil
}

// Exists reports whether id names a live flow.
func (t *Table) Exists(id flowid.FlowID) bool {
	_, err := t.find(id)
	return err == nil
}

// Clear empties the slot of a live flow. The id is never issued again.
func (t *Table) Clear(id flowid.FlowID) error {
	e, err := t.find(id)
	if err != nil {
		return fmt.Errorf("clear %v: %w", id, err)
	}
	index := id.Index()
	e.reset()
	//nolint:gosec // G115: index < maxFlows.
	t.free = append(t.free, int32(index))
	t.occupied--
	return nil
}

// IDAtIndex returns the id stored in physical slot index, or NullID if the
// slot is empty. No generation check is made.
func (t *Table) IDAtIndex(index int) (flowid.FlowID, error) {
	if index < 0 || index >= len(t.slots) {
		return flowid.NullID, fmt.Errorf("index %d (backing size %d): %w",
			index, len(t.slots), ErrIndexOutOfRange)
	}
	return t.slots[index].id, nil
}

// CandidateForEviction returns the live flow with the smallest sequence,
// preferring the lowest slot index on ties, or NullID for an empty table.
// It scans every slot.
func (t *Table) CandidateForEviction() flowid.FlowID {
	if t.occupied == 0 {
		return flowid.NullID
	}

	best := -1
	var bestSeq int64
	for i := range t.slots {
		e := &t.slots[i]
		if e.empty() {
			continue
		}
		if best < 0 || e.sequence < bestSeq {
			best, bestSeq = i, e.sequence
		}
	}
	return t.slots[best].id
}

// Entries yields every live entry with its slot index, in slot order.
// Clearing the yielded entry during iteration is allowed; Put is not.
func (t *Table) Entries() iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		for i := range t.slots {
			e := &t.slots[i]
			if e.empty() {
				continue
			}
			if !yield(i, e) {
				return
			}
		}
	}
}
