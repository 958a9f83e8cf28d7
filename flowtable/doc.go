// Package flowtable provides the bounded flow cache at the core of a datapath
// controller.
//
// # Overview
//
// A Table maps opaque flow-match bytes to Entry records in a fixed-size slot
// arena. Every stored flow gets a flowid.FlowID combining its slot index with a
// generation drawn from a per-table counter that only increases, so:
//
//   - lookups are O(1): decode the index, compare the stored id
//   - an id goes stale the moment its flow is cleared, even if the slot is
//     later reused by another flow
//   - no id is ever issued twice by the same table
//
// # Capacity
//
// New(maxFlows) allocates NextPosPowerOfTwo(maxFlows) slots so ids can be
// range-checked with a mask. Only maxFlows of them are ever occupied; Put
// returns ErrTableFull once Occupied() == MaxFlows().
//
// # Eviction
//
// The table does not decide when to evict. Callers stamp entries with
// Entry.SetSequence as they see traffic, and under pressure ask for
// CandidateForEviction, clear it, and retry Put:
//
//	id, err := t.Put(match)
//	if errors.Is(err, flowtable.ErrTableFull) {
//	    if err := t.Clear(t.CandidateForEviction()); err != nil {
//	        return err
//	    }
//	    id, err = t.Put(match)
//	}
//
// Get never updates the sequence. The candidate is the live entry with the
// smallest sequence, lowest slot index first on ties.
//
// # Errors
//
// Lookup failures wrap ErrNotFound. A lookup hitting a slot that now holds a
// newer flow additionally matches ErrStaleID. No failed call modifies the
// table.
//
// # Concurrency
//
// Table is not safe for concurrent use. See package flowtable/shard for a
// set of independently locked tables.
package flowtable
