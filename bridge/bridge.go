// Package bridge exposes flow tables through a handle-based API with only
// primitive arguments and results, for a foreign-call layer (cgo exports, a
// JNI shim, an RPC stub) to wrap one function at a time.
//
// Tables are addressed by int64 handles and flows by raw int64 FlowID values,
// whose bit layout is documented in package flowid. Every call reports a
// Status instead of a Go error so it can cross the boundary as an integer.
//
// The registry serializes all calls with one mutex. Callers that need
// per-worker throughput should open one table per worker, which is how the
// datapath deploys them anyway.
package bridge

import (
	"errors"
	"sync"

	"github.com/joshuapare/flowkit/flowid"
	"github.com/joshuapare/flowkit/flowtable"
)

// Status is the result code of a bridge call.
type Status int32

const (
	StatusOK Status = iota
	StatusInvalidCapacity
	StatusTableFull
	StatusNotFound
	StatusStaleID
	StatusBadHandle
	StatusIndexOutOfRange
	StatusExhausted
)

var statusNames = [...]string{
	StatusOK:              "ok",
	StatusInvalidCapacity: "invalid capacity",
	StatusTableFull:       "table full",
	StatusNotFound:        "not found",
	StatusStaleID:         "stale id",
	StatusBadHandle:       "bad handle",
	StatusIndexOutOfRange: "index out of range",
	StatusExhausted:       "id space exhausted",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// StatusOf maps a flowtable error to its Status. Unknown errors map to StatusNotFound.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, flowtable.ErrInvalidCapacity):
		return StatusInvalidCapacity
	case errors.Is(err, flowtable.ErrTableFull):
		return StatusTableFull
	case errors.Is(err, flowtable.ErrStaleID):
		return StatusStaleID
	case errors.Is(err, flowtable.ErrIndexOutOfRange):
		return StatusIndexOutOfRange
	case errors.Is(err, flowtable.ErrIDSpaceExhausted):
		return StatusExhausted
	default:
		return StatusNotFound
	}
}

// Flow is a by-value copy of an entry for the caller's side of the boundary.
type Flow struct {
	ID       int64
	Match    []byte
	Sequence int64
	LinkedID int64
}

// Registry owns the tables opened through the bridge.
type Registry struct {
	mu     sync.Mutex
	tables map[int64]*flowtable.Table
	next   int64
}

// NewRegistry returns an empty registry. Handles start at 1; 0 is never valid.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[int64]*flowtable.Table)}
}

// NullID is the raw value of flowid.NullID.
const NullID = int64(flowid.NullID)

// Open creates a table and returns its handle.
func (r *Registry) Open(maxFlows int32) (int64, Status) {
	t, err := flowtable.New(int(maxFlows))
	if err != nil {
		return 0, StatusOf(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.tables[r.next] = t
	return r.next, StatusOK
}

// Close releases a table.
func (r *Registry) Close(handle int64) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[handle]; !ok {
		return StatusBadHandle
	}
	delete(r.tables, handle)
	return StatusOK
}

// with runs fn on the table for handle while holding the registry lock.
func (r *Registry) with(handle int64, fn func(*flowtable.Table) Status) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[handle]
	if !ok {
		return StatusBadHandle
	}
	return fn(t)
}

// Put stores match and returns the new raw id.
func (r *Registry) Put(handle int64, match []byte) (int64, Status) {
	id := NullID
	st := r.with(handle, func(t *flowtable.Table) Status {
		fid, err := t.Put(match)
		id = int64(fid)
		return StatusOf(err)
	})
	return id, st
}

// Get copies the entry for id.
func (r *Registry) Get(handle, id int64) (Flow, Status) {
	var f Flow
	st := r.with(handle, func(t *flowtable.Table) Status {
		e, err := t.Get(flowid.FlowID(id))
		if err != nil {
			return StatusOf(err)
		}
		f = Flow{
			ID:       int64(e.ID()),
			Match:    append([]byte(nil), e.Match()...),
			Sequence: e.Sequence(),
			LinkedID: int64(e.LinkedID()),
		}
		return StatusOK
	})
	return f, st
}

// Exists reports whether id is live. An unknown handle reports false.
func (r *Registry) Exists(handle, id int64) bool {
	return r.with(handle, func(t *flowtable.Table) Status {
		if t.Exists(flowid.FlowID(id)) {
			return StatusOK
		}
		return StatusNotFound
	}) == StatusOK
}

// Clear removes id.
func (r *Registry) Clear(handle, id int64) Status {
	return r.with(handle, func(t *flowtable.Table) Status {
		return StatusOf(t.Clear(flowid.FlowID(id)))
	})
}

// SetSequence overwrites the recency stamp of id.
func (r *Registry) SetSequence(handle, id, seq int64) Status {
	return r.with(handle, func(t *flowtable.Table) Status {
		e, err := t.Get(flowid.FlowID(id))
		if err != nil {
			return StatusOf(err)
		}
		e.SetSequence(seq)
		return StatusOK
	})
}

// SetLinkedID records linked as the paired flow of id.
func (r *Registry) SetLinkedID(handle, id, linked int64) Status {
	return r.with(handle, func(t *flowtable.Table) Status {
		e, err := t.Get(flowid.FlowID(id))
		if err != nil {
			return StatusOf(err)
		}
		e.SetLinkedID(flowid.FlowID(linked))
		return StatusOK
	})
}

// CandidateForEviction returns the raw id of the eviction candidate, or NullID.
func (r *Registry) CandidateForEviction(handle int64) (int64, Status) {
	id := NullID
	st := r.with(handle, func(t *flowtable.Table) Status {
		id = int64(t.CandidateForEviction())
		return StatusOK
	})
	return id, st
}

// Occupied returns the number of live flows.
func (r *Registry) Occupied(handle int64) (int32, Status) {
	var n int32
	st := r.with(handle, func(t *flowtable.Table) Status {
		n = int32(t.Occupied()) //nolint:gosec // G115: bounded by MaxTableSize.
		return StatusOK
	})
	return n, st
}

// IDAtIndex returns the raw id in physical slot index, or NullID if empty.
func (r *Registry) IDAtIndex(handle int64, index int32) (int64, Status) {
	id := NullID
	st := r.with(handle, func(t *flowtable.Table) Status {
		fid, err := t.IDAtIndex(int(index))
		id = int64(fid)
		return StatusOf(err)
	})
	return id, st
}
