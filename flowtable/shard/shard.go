// Package shard spreads flows over several independently locked flow tables.
//
// Each shard is a flowtable.Table behind its own mutex, padded to a cache
// line so workers hammering neighbouring shards do not false-share. A flow
// match picks its shard by FNV-1a hash, so the same match always lands in the
// same table. Ids are only unique within a shard; a Ref carries both.
package shard

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"golang.org/x/sys/cpu"

	"github.com/joshuapare/flowkit/flowid"
	"github.com/joshuapare/flowkit/flowtable"
	"github.com/joshuapare/flowkit/internal/bitsize"
)

// ErrBadShard indicates a shard index outside [0, Shards()).
var ErrBadShard = errors.New("shard: shard index out of range")

// Options configures a Set.
type Options struct {
	// Shards is the number of tables, rounded up to a power of two.
	// Default: 16
	Shards int

	// MaxFlows is the total capacity. Each shard gets MaxFlows/Shards slots
	// and the remainder goes one slot each to the lowest shards, so the
	// total is exactly MaxFlows. It must be at least the rounded shard count.
	// Default: 65536
	MaxFlows int
}

// DefaultOptions returns a 16-way set holding 64K flows.
func DefaultOptions() Options {
	return Options{
		Shards:   16,
		MaxFlows: 1 << 16,
	}
}

func (o *Options) fillDefaults() {
	def := DefaultOptions()
	if o.Shards == 0 {
		o.Shards = def.Shards
	}
	if o.MaxFlows == 0 {
		o.MaxFlows = def.MaxFlows
	}
}

// Ref names a flow inside a Set.
type Ref struct {
	Shard int
	ID    flowid.FlowID
}

func (r Ref) String() string {
	return fmt.Sprintf("%d/%v", r.Shard, r.ID)
}

type paddedTable struct {
	mu    sync.Mutex
	table *flowtable.Table
	_     cpu.CacheLinePad
}

// Set is a fixed group of flow tables, safe for concurrent use.
type Set struct {
	shards []paddedTable
	mask   uint32
}

// New builds a Set from opts. Zero fields take their DefaultOptions value.
func New(opts Options) (*Set, error) {
	opts.fillDefaults()

	n, err := bitsize.NextPosPowerOfTwo(opts.Shards)
	if err != nil {
		return nil, fmt.Errorf("shards %d: %w", opts.Shards, err)
	}
	if opts.MaxFlows < n {
		return nil, fmt.Errorf("max flows %d below %d shards: %w",
			opts.MaxFlows, n, flowtable.ErrInvalidCapacity)
	}

	perShard, extra := opts.MaxFlows/n, opts.MaxFlows%n

	s := &Set{
		shards: make([]paddedTable, n),
		mask:   uint32(n - 1), //nolint:gosec // G115: n <= 2^28.
	}
	for i := range s.shards {
		size := perShard
		if i < extra {
			size++
		}
		t, err := flowtable.New(size)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", i, err)
		}
		s.shards[i].table = t
	}
	return s, nil
}

// Shards returns the number of tables.
func (s *Set) Shards() int { return len(s.shards) }

// ShardFor returns the shard a match is stored in.
func (s *Set) ShardFor(match []byte) int {
	h := fnv.New32a()
	h.Write(match) //nolint:errcheck // fnv hash.Write never errors
	return int(h.Sum32() & s.mask)
}

func (s *Set) shard(i int) (*paddedTable, error) {
	if i < 0 || i >= len(s.shards) {
		return nil, fmt.Errorf("shard %d of %d: %w", i, len(s.shards), ErrBadShard)
	}
	return &s.shards[i], nil
}

// With runs fn with exclusive access to one shard's table.
// fn must not retain the table or any entry pointer after returning.
func (s *Set) With(shard int, fn func(*flowtable.Table) error) error {
	p, err := s.shard(shard)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.table)
}

// Put stores match in its shard.
func (s *Set) Put(match []byte) (Ref, error) {
	ref := Ref{Shard: s.ShardFor(match), ID: flowid.NullID}
	err := s.With(ref.Shard, func(t *flowtable.Table) error {
		id, err := t.Put(match)
		ref.ID = id
		return err
	})
	return ref, err
}

// Exists reports whether ref names a live flow.
func (s *Set) Exists(ref Ref) bool {
	ok := false
	_ = s.With(ref.Shard, func(t *flowtable.Table) error {
		ok = t.Exists(ref.ID)
		return nil
	})
	return ok
}

// Clear removes the flow named by ref.
func (s *Set) Clear(ref Ref) error {
	return s.With(ref.Shard, func(t *flowtable.Table) error {
		return t.Clear(ref.ID)
	})
}

// Evict clears the eviction candidate of one shard and returns its ref.
// The returned ref holds flowid.NullID if the shard was empty.
func (s *Set) Evict(shard int) (Ref, error) {
	ref := Ref{Shard: shard, ID: flowid.NullID}
	err := s.With(shard, func(t *flowtable.Table) error {
		ref.ID = t.CandidateForEviction()
		if ref.ID == flowid.NullID {
			return nil
		}
		return t.Clear(ref.ID)
	})
	return ref, err
}

// Occupied sums live flows across shards. Shards are locked one at a time, so
// the total is not a consistent snapshot under concurrent writes.
func (s *Set) Occupied() int {
	total := 0
	for i := range s.shards {
		p := &s.shards[i]
		p.mu.Lock()
		total += p.table.Occupied()
		p.mu.Unlock()
	}
	return total
}

// MaxFlows returns the combined capacity of all shards.
func (s *Set) MaxFlows() int {
	total := 0
	for i := range s.shards {
		total += s.shards[i].table.MaxFlows()
	}
	return total
}
