package flowtable

import "github.com/joshuapare/flowkit/flowid"

// Entry is the record stored in an occupied slot.
//
// Pointers returned by Table.Get refer to the slot itself. They stay valid
// while the flow is live; after Clear the slot may be handed to a new flow, so
// callers must re-validate with Table.Exists before touching a held pointer.
type Entry struct {
	id       flowid.FlowID
	match    []byte
	sequence int64
	linkedID flowid.FlowID
}

// ID returns the flow's id. It never changes while the entry is live.
func (e *Entry) ID() flowid.FlowID { return e.id }

// Match returns the stored copy of the flow match.
// The slice is owned by the table and must not be modified.
func (e *Entry) Match() []byte { return e.match }

// Sequence returns the recency stamp used for eviction ordering.
func (e *Entry) Sequence() int64 { return e.sequence }

// SetSequence overwrites the recency stamp. Lookups never update it.
func (e *Entry) SetSequence(seq int64) { e.sequence = seq }

// LinkedID returns the id of a paired flow, or flowid.NullID.
// The linked flow may already have been cleared.
func (e *Entry) LinkedID() flowid.FlowID { return e.linkedID }

// SetLinkedID records a paired flow. The link is a plain reference, not ownership.
func (e *Entry) SetLinkedID(id flowid.FlowID) { e.linkedID = id }

func (e *Entry) empty() bool { return e.id == flowid.NullID }

// store initializes an empty slot, reusing its match buffer.
func (e *Entry) store(id flowid.FlowID, match []byte, seq int64) {
	e.id = id
	e.match = append(e.match[:0], match...)
	e.sequence = seq
	e.linkedID = flowid.NullID
}

// reset returns the slot to the empty state but keeps the buffer capacity.
func (e *Entry) reset() {
	e.id = flowid.NullID
	e.match = e.match[:0]
	e.sequence = 0
	e.linkedID = flowid.NullID
}
