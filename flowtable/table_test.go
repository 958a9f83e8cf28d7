package flowtable

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/flowkit/flowid"
)

func newTable(t *testing.T, maxFlows int) *Table {
	t.Helper()
	tbl, err := New(maxFlows)
	require.NoError(t, err)
	return tbl
}

func mustPut(t *testing.T, tbl *Table, match string) flowid.FlowID {
	t.Helper()
	id, err := tbl.Put([]byte(match))
	require.NoError(t, err, "Put(%q)", match)
	return id
}

func TestNew_Sizing(t *testing.T) {
	tests := []struct {
		maxFlows int
		backing  int
	}{
		{1, 1},
		{3, 4},
		{4, 4},
		{5, 8},
		{1000, 1024},
	}
	for _, tt := range tests {
		tbl := newTable(t, tt.maxFlows)
		assert.Equal(t, tt.maxFlows, tbl.MaxFlows())
		assert.Equal(t, tt.backing, tbl.BackingSize())
		assert.Equal(t, tt.backing-1, tbl.Mask())
		assert.Equal(t, 0, tbl.Occupied())
		assert.Equal(t, flowid.NullID, tbl.CandidateForEviction())
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, n := range []int{0, -5, MaxTableSize + 1} {
		tbl, err := New(n)
		require.ErrorIs(t, err, ErrInvalidCapacity, "New(%d)", n)
		assert.Nil(t, tbl)
	}
}

func TestPut_ThenGet(t *testing.T) {
	tbl := newTable(t, 8)

	id := mustPut(t, tbl, "match-a")
	require.True(t, tbl.Exists(id))
	assert.Equal(t, 1, tbl.Occupied())

	e, err := tbl.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, e.ID())
	assert.Equal(t, []byte("match-a"), e.Match())
	assert.Equal(t, id.Generation(), e.Sequence(), "sequence starts at the id counter")
	assert.Equal(t, flowid.NullID, e.LinkedID())
}

func TestPut_CopiesMatch(t *testing.T) {
	tbl := newTable(t, 2)
	buf := []byte("abc")
	id, err := tbl.Put(buf)
	require.NoError(t, err)

	buf[0] = 'X'
	e, err := tbl.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(e.Match()))
}

func TestPut_TableFull(t *testing.T) {
	tbl := newTable(t, 2)
	mustPut(t, tbl, "a")
	mustPut(t, tbl, "b")

	id, err := tbl.Put([]byte("c"))
	require.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, flowid.NullID, id)
	assert.Equal(t, 2, tbl.Occupied())
}

func TestPut_FillsLowIndicesFirst(t *testing.T) {
	tbl := newTable(t, 5)
	for want := range 5 {
		id := mustPut(t, tbl, "x")
		assert.Equal(t, want, id.Index())
	}
	// Backing slots past maxFlows are never used.
	for i := 5; i < tbl.BackingSize(); i++ {
		id, err := tbl.IDAtIndex(i)
		require.NoError(t, err)
		assert.Equal(t, flowid.NullID, id)
	}
}

func TestGet_DoesNotTouchSequence(t *testing.T) {
	tbl := newTable(t, 4)
	a := mustPut(t, tbl, "a")
	mustPut(t, tbl, "b")

	for range 3 {
		_, err := tbl.Get(a)
		require.NoError(t, err)
	}
	assert.Equal(t, a, tbl.CandidateForEviction())
}

func TestClear(t *testing.T) {
	tbl := newTable(t, 4)
	a := mustPut(t, tbl, "a")
	b := mustPut(t, tbl, "b")

	require.NoError(t, tbl.Clear(a))
	assert.False(t, tbl.Exists(a))
	assert.True(t, tbl.Exists(b))
	assert.Equal(t, 1, tbl.Occupied())

	_, err := tbl.Get(a)
	require.ErrorIs(t, err, ErrNotFound)

	err = tbl.Clear(a)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, tbl.Occupied(), "failed clear must not change occupancy")
}

func TestStaleID_AfterSlotReuse(t *testing.T) {
	tbl := newTable(t, 1)
	old := mustPut(t, tbl, "old")
	require.NoError(t, tbl.Clear(old))

	fresh := mustPut(t, tbl, "new")
	require.Equal(t, old.Index(), fresh.Index(), "single-slot table reuses the slot")
	require.NotEqual(t, old, fresh)

	assert.False(t, tbl.Exists(old))
	_, err := tbl.Get(old)
	require.ErrorIs(t, err, ErrStaleID)
	require.ErrorIs(t, err, ErrNotFound)

	err = tbl.Clear(old)
	require.ErrorIs(t, err, ErrStaleID)
	assert.True(t, tbl.Exists(fresh))
	assert.Equal(t, 1, tbl.Occupied())

	e, err := tbl.Get(fresh)
	require.NoError(t, err)
	assert.Equal(t, "new", string(e.Match()))
}

func TestLookup_InvalidIDs(t *testing.T) {
	tbl := newTable(t, 3)
	live := mustPut(t, tbl, "a")

	ids := []flowid.FlowID{
		flowid.NullID,
		flowid.Encode(3, live.Generation()), // empty slot inside backing storage
		flowid.Encode(4, live.Generation()), // index beyond backing storage
		flowid.Encode(flowid.IndexMask, 1),
		flowid.Encode(live.Index(), live.Generation()+1),
		-1,
	}
	for _, id := range ids {
		assert.False(t, tbl.Exists(id), "Exists(%v)", id)
		_, err := tbl.Get(id)
		require.ErrorIs(t, err, ErrNotFound, "Get(%v)", id)
		require.ErrorIs(t, tbl.Clear(id), ErrNotFound, "Clear(%v)", id)
	}
	assert.Equal(t, 1, tbl.Occupied())
}

func TestEntry_Mutators(t *testing.T) {
	tbl := newTable(t, 4)
	a := mustPut(t, tbl, "a")
	b := mustPut(t, tbl, "b")

	e, err := tbl.Get(a)
	require.NoError(t, err)
	e.SetSequence(100)
	e.SetLinkedID(b)

	again, err := tbl.Get(a)
	require.NoError(t, err)
	assert.Equal(t, int64(100), again.Sequence())
	assert.Equal(t, b, again.LinkedID())

	// The link is a weak reference.
	require.NoError(t, tbl.Clear(b))
	assert.Equal(t, b, again.LinkedID())
	assert.False(t, tbl.Exists(again.LinkedID()))
}

func TestClear_ResetsSlotState(t *testing.T) {
	tbl := newTable(t, 1)
	a := mustPut(t, tbl, "first")
	e, err := tbl.Get(a)
	require.NoError(t, err)
	e.SetLinkedID(a)
	e.SetSequence(-7)
	require.NoError(t, tbl.Clear(a))

	b := mustPut(t, tbl, "2")
	e, err = tbl.Get(b)
	require.NoError(t, err)
	assert.Equal(t, "2", string(e.Match()))
	assert.Equal(t, flowid.NullID, e.LinkedID())
	assert.Equal(t, b.Generation(), e.Sequence())
}

func TestIDAtIndex(t *testing.T) {
	tbl := newTable(t, 3)
	a := mustPut(t, tbl, "a")

	got, err := tbl.IDAtIndex(a.Index())
	require.NoError(t, err)
	assert.Equal(t, a, got)

	for _, i := range []int{-1, tbl.BackingSize(), 1 << 20} {
		id, err := tbl.IDAtIndex(i)
		require.ErrorIs(t, err, ErrIndexOutOfRange, "IDAtIndex(%d)", i)
		assert.Equal(t, flowid.NullID, id)
	}
}

func TestCandidateForEviction(t *testing.T) {
	tbl := newTable(t, 8)
	ids := make([]flowid.FlowID, 5)
	for i := range ids {
		ids[i] = mustPut(t, tbl, "x")
	}
	assert.Equal(t, ids[0], tbl.CandidateForEviction(), "oldest put wins by default")

	seqs := []int64{50, 20, 30, 20, 40}
	for i, id := range ids {
		e, err := tbl.Get(id)
		require.NoError(t, err)
		e.SetSequence(seqs[i])
	}
	assert.Equal(t, ids[1], tbl.CandidateForEviction(), "tie breaks toward lowest index")

	require.NoError(t, tbl.Clear(ids[1]))
	assert.Equal(t, ids[3], tbl.CandidateForEviction())
}

// TestScenario_EvictThenRetry walks the capacity-3 example end to end.
func TestScenario_EvictThenRetry(t *testing.T) {
	tbl := newTable(t, 3)
	require.Equal(t, 4, tbl.BackingSize())

	a := mustPut(t, tbl, "a")
	mustPut(t, tbl, "b")
	mustPut(t, tbl, "c")
	require.Equal(t, 3, tbl.Occupied())

	_, err := tbl.Put([]byte("d"))
	require.ErrorIs(t, err, ErrTableFull)

	victim := tbl.CandidateForEviction()
	require.Equal(t, a, victim)
	require.NoError(t, tbl.Clear(victim))

	d := mustPut(t, tbl, "d")
	assert.Equal(t, 3, tbl.Occupied())
	assert.True(t, tbl.Exists(d))
	assert.False(t, tbl.Exists(a))
}

func TestIDsNeverRepeat(t *testing.T) {
	tbl := newTable(t, 16)
	rng := rand.New(rand.NewPCG(1, 2))
	seen := make(map[flowid.FlowID]struct{})
	var live []flowid.FlowID

	for range 20000 {
		if len(live) > 0 && (tbl.Occupied() == tbl.MaxFlows() || rng.IntN(3) == 0) {
			k := rng.IntN(len(live))
			require.NoError(t, tbl.Clear(live[k]))
			live[k] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		id, err := tbl.Put([]byte{byte(rng.IntN(256))})
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "id %v issued twice", id)
		seen[id] = struct{}{}
		live = append(live, id)
	}

	require.Equal(t, len(live), tbl.Occupied())
	for i := range tbl.BackingSize() {
		id, err := tbl.IDAtIndex(i)
		require.NoError(t, err)
		if id != flowid.NullID {
			assert.Equal(t, i, id.Index())
		}
	}
}

func TestEntries(t *testing.T) {
	tbl := newTable(t, 4)
	a := mustPut(t, tbl, "a")
	b := mustPut(t, tbl, "b")
	c := mustPut(t, tbl, "c")
	require.NoError(t, tbl.Clear(b))

	var got []flowid.FlowID
	for i, e := range tbl.Entries() {
		assert.Equal(t, i, e.ID().Index())
		got = append(got, e.ID())
	}
	assert.Equal(t, []flowid.FlowID{a, c}, got)

	// Clearing while iterating drains the table.
	for _, e := range tbl.Entries() {
		require.NoError(t, tbl.Clear(e.ID()))
	}
	assert.Equal(t, 0, tbl.Occupied())
}

func TestIDSpaceExhausted(t *testing.T) {
	tbl := newTable(t, 2)
	tbl.idCounter = flowid.MaxGeneration - 1

	id := mustPut(t, tbl, "last")
	assert.Equal(t, int64(flowid.MaxGeneration), id.Generation())

	_, err := tbl.Put([]byte("overflow"))
	require.True(t, errors.Is(err, ErrIDSpaceExhausted))
	assert.Equal(t, 1, tbl.Occupied())
}

func BenchmarkPutClear(b *testing.B) {
	tbl, err := New(1 << 16)
	if err != nil {
		b.Fatal(err)
	}
	match := []byte("0123456789abcdef0123456789abcdef")
	for b.Loop() {
		id, err := tbl.Put(match)
		if err != nil {
			b.Fatal(err)
		}
		if err := tbl.Clear(id); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCandidateForEviction(b *testing.B) {
	tbl, err := New(1 << 12)
	if err != nil {
		b.Fatal(err)
	}
	for range tbl.MaxFlows() {
		if _, err := tbl.Put([]byte("m")); err != nil {
			b.Fatal(err)
		}
	}
	for b.Loop() {
		_ = tbl.CandidateForEviction()
	}
}
