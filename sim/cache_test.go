package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/cachesim/sim/trace"
)

// newTestCache builds a cache or fails the test.
func newTestCache(t *testing.T, s, e, b int) *Cache {
	t.Helper()
	g, err := NewGeometry(s, e, b)
	require.NoError(t, err)
	c, err := NewCache(g)
	require.NoError(t, err)
	return c
}

// loads builds a Load event per address.
func loads(addrs ...uint64) []AccessEvent {
	events := make([]AccessEvent, len(addrs))
	for i, a := range addrs {
		events[i] = AccessEvent{Op: Load, Address: a, Size: 1}
	}
	return events
}

// processAll runs events one by one and collects the results.
func processAll(c *Cache, events []AccessEvent) []AccessResult {
	results := make([]AccessResult, len(events))
	for i, ev := range events {
		results[i] = c.Process(ev)
	}
	return results
}

func TestCache_NoAssociativity_ForcedEviction(t *testing.T) {
	// GIVEN a single-line cache (s=0, E=1, b=0)
	c := newTestCache(t, 0, 1, 0)

	// WHEN loading 0x0, 0x1, 0x0
	res := processAll(c, loads(0x0, 0x1, 0x0))

	// THEN the first access fills the empty line and the next two each evict the other tag
	assert.Equal(t, Miss, res[0].Outcome)
	assert.Equal(t, MissEviction, res[1].Outcome)
	assert.Equal(t, uint64(0x0), res[1].EvictedTag)
	assert.Equal(t, MissEviction, res[2].Outcome)
	assert.Equal(t, uint64(0x1), res[2].EvictedTag)
	assert.Equal(t, Statistics{Hits: 0, Misses: 3, Evictions: 2}, c.Statistics())
}

func TestCache_LRU_HitRefreshesRecency(t *testing.T) {
	// GIVEN a two-way, single-set cache
	c := newTestCache(t, 0, 2, 0)

	// WHEN loading 0x0, 0x1, 0x0 (hit), 0x2
	res := processAll(c, loads(0x0, 0x1, 0x0, 0x2))

	// THEN the hit on 0x0 makes 0x1 the LRU line, which 0x2 replaces
	assert.Equal(t, []Outcome{Miss, Miss, Hit, MissEviction},
		[]Outcome{res[0].Outcome, res[1].Outcome, res[2].Outcome, res[3].Outcome})
	assert.Equal(t, uint64(0x1), res[3].EvictedTag)
	assert.Equal(t, 1, res[3].Way)
	assert.Equal(t, Statistics{Hits: 1, Misses: 3, Evictions: 1}, c.Statistics())
}

func TestCache_HitCheck_ScansWholeSet(t *testing.T) {
	// GIVEN a two-way set holding tags 0x0 (way 0) and 0x1 (way 1)
	c := newTestCache(t, 0, 2, 0)
	processAll(c, loads(0x0, 0x1))

	// WHEN tag 0x1, which lives beyond way 0, is accessed again
	res := c.Process(AccessEvent{Op: Load, Address: 0x1})

	// THEN it is a hit found at way 1, not a miss decided by way 0 alone
	assert.Equal(t, Hit, res.Outcome)
	assert.Equal(t, 1, res.Way)
	assert.Equal(t, Statistics{Hits: 1, Misses: 2, Evictions: 0}, c.Statistics())
}

func TestCache_Miss_FillsLowestInvalidLine(t *testing.T) {
	c := newTestCache(t, 0, 4, 0)

	res := processAll(c, loads(0x7, 0x9))

	assert.Equal(t, 0, res[0].Way)
	assert.Equal(t, 1, res[1].Way)
	lines := c.Lines(0)
	assert.True(t, lines[0].Valid)
	assert.True(t, lines[1].Valid)
	assert.False(t, lines[2].Valid)
	assert.False(t, lines[3].Valid)
}

func TestCache_Evict_ChoosesLeastRecentlyUsed(t *testing.T) {
	// GIVEN a full three-way set where 0x0 and 0x1 were touched again after 0x2
	c := newTestCache(t, 0, 3, 0)
	processAll(c, loads(0x0, 0x1, 0x2, 0x0, 0x1))

	// WHEN a fourth tag arrives
	res := c.Process(AccessEvent{Op: Load, Address: 0x3})

	// THEN 0x2 (way 2) is the victim
	assert.Equal(t, MissEviction, res.Outcome)
	assert.Equal(t, uint64(0x2), res.EvictedTag)
	assert.Equal(t, 2, res.Way)

	// AND the next victim is 0x0, now the oldest line
	res = c.Process(AccessEvent{Op: Load, Address: 0x2})
	assert.Equal(t, uint64(0x0), res.EvictedTag)
	assert.Equal(t, 0, res.Way)
}

func TestSet_Victim_TiesGoToLowestIndex(t *testing.T) {
	tests := []struct {
		name  string
		times []uint64
		want  int
	}{
		{"all baseline", []uint64{0, 0, 0, 0}, 0},
		{"tie in the middle", []uint64{5, 3, 3, 9}, 1},
		{"single line", []uint64{7}, 0},
		{"oldest last", []uint64{4, 3, 2, 1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Set{lines: make([]Line, len(tt.times))}
			for i, ts := range tt.times {
				s.lines[i] = Line{Valid: true, Tag: uint64(i), LastAccess: ts}
			}
			assert.Equal(t, tt.want, s.victim())
		})
	}
}

func TestCache_SetsAreIndependent(t *testing.T) {
	// GIVEN two direct-mapped sets (s=1, E=1, b=0): set = addr&1, tag = addr>>1
	c := newTestCache(t, 1, 1, 0)

	// WHEN set 0 suffers an eviction while set 1 holds 0x1
	processAll(c, loads(0x0, 0x1, 0x2))
	before := c.Lines(1)
	res := c.Process(AccessEvent{Op: Load, Address: 0x1})

	// THEN set 1 is untouched by set 0's eviction and still hits
	assert.Equal(t, Hit, res.Outcome)
	assert.Equal(t, before[0].Tag, c.Lines(1)[0].Tag)
	assert.Equal(t, Statistics{Hits: 1, Misses: 3, Evictions: 1}, c.Statistics())
}

func TestCache_SameBlockDifferentOffsets_Hit(t *testing.T) {
	// GIVEN 16-byte blocks in a single line
	c := newTestCache(t, 0, 1, 4)

	// WHEN two addresses in the same block and then one in the next block are loaded
	res := processAll(c, loads(0x10, 0x1F, 0x20))

	// THEN the second is a hit and the third evicts
	assert.Equal(t, []Outcome{Miss, Hit, MissEviction},
		[]Outcome{res[0].Outcome, res[1].Outcome, res[2].Outcome})
	assert.Equal(t, uint64(0xF), res[1].Partition.BlockOffset)
}

func TestCache_StoresAndLoadsAreTreatedAlike(t *testing.T) {
	c := newTestCache(t, 0, 1, 0)

	stats := c.Run([]AccessEvent{
		{Op: Store, Address: 0x5, Size: 8},
		{Op: Load, Address: 0x5, Size: 8},
	})

	assert.Equal(t, Statistics{Hits: 1, Misses: 1}, stats)
}

func TestCache_SizeDoesNotInfluenceOutcome(t *testing.T) {
	// GIVEN 4-byte blocks and two ways
	c := newTestCache(t, 0, 2, 2)

	// WHEN an 8-byte access at 0x3 spans into the next block
	res := processAll(c, []AccessEvent{
		{Op: Load, Address: 0x3, Size: 8},
		{Op: Load, Address: 0x4, Size: 1},
		{Op: Load, Address: 0x0, Size: 1},
	})

	// THEN only the block of the start address was filled
	assert.Equal(t, Miss, res[1].Outcome)
	assert.Equal(t, Hit, res[2].Outcome)
	assert.Equal(t, Statistics{Hits: 1, Misses: 2}, c.Statistics())
}

// randomEvents draws n accesses from a small address window so that sets
// see plenty of reuse and conflict.
func randomEvents(seed int64, n int, window uint64) []AccessEvent {
	rng := rand.New(rand.NewSource(seed))
	events := make([]AccessEvent, n)
	for i := range events {
		op := Load
		if rng.Intn(3) == 0 {
			op = Store
		}
		events[i] = AccessEvent{Op: op, Address: uint64(rng.Int63n(int64(window))), Size: 4}
	}
	return events
}

func TestCache_Invariants_RandomStreams(t *testing.T) {
	geoms := []struct{ s, e, b int }{
		{0, 1, 0}, {0, 4, 2}, {2, 1, 3}, {3, 2, 4}, {4, 8, 4}, {1, 3, 5},
	}
	for _, g := range geoms {
		c := newTestCache(t, g.s, g.e, g.b)
		events := randomEvents(7, 5000, 4096)

		var prev Statistics
		for i, ev := range events {
			c.Process(ev)
			st := c.Statistics()
			// counters never decrease and exactly one of hits/misses advances
			require.GreaterOrEqual(t, st.Hits, prev.Hits)
			require.GreaterOrEqual(t, st.Misses, prev.Misses)
			require.GreaterOrEqual(t, st.Evictions, prev.Evictions)
			require.Equal(t, uint64(i+1), st.Hits+st.Misses)
			require.LessOrEqual(t, st.Evictions, st.Misses)
			prev = st
		}
		assert.Equal(t, uint64(len(events)), c.Clock())

		// at most E valid lines per set, and no tag held twice in a set
		for set := 0; set < c.Geometry().NumSets(); set++ {
			seen := map[uint64]bool{}
			for _, l := range c.Lines(uint64(set)) {
				if !l.Valid {
					continue
				}
				assert.False(t, seen[l.Tag], "set %d holds tag %#x twice", set, l.Tag)
				seen[l.Tag] = true
			}
			assert.LessOrEqual(t, len(seen), g.e)
		}
	}
}

func TestCache_NoEvictionUntilSetExceedsAssociativity(t *testing.T) {
	// GIVEN s=2, E=4, b=3: address = tag<<5 | set<<3
	c := newTestCache(t, 2, 4, 3)
	addr := func(tag, set uint64) uint64 { return tag<<5 | set<<3 }

	// WHEN every set receives exactly E distinct tags, twice over
	for round := 0; round < 2; round++ {
		for set := uint64(0); set < 4; set++ {
			for tag := uint64(0); tag < 4; tag++ {
				c.Process(AccessEvent{Op: Load, Address: addr(tag, set)})
			}
		}
	}

	// THEN nothing has been evicted yet
	assert.Equal(t, Statistics{Hits: 16, Misses: 16, Evictions: 0}, c.Statistics())

	// WHEN set 0 receives its (E+1)-th distinct tag
	res := c.Process(AccessEvent{Op: Load, Address: addr(4, 0)})

	// THEN the first eviction happens, replacing that set's LRU tag
	assert.Equal(t, MissEviction, res.Outcome)
	assert.Equal(t, uint64(0), res.EvictedTag)
	assert.Equal(t, uint64(1), c.Statistics().Evictions)
}

func TestCache_Determinism_IdenticalInputsIdenticalResults(t *testing.T) {
	events := randomEvents(99, 20000, 1<<14)

	a := newTestCache(t, 3, 4, 5)
	b := newTestCache(t, 3, 4, 5)

	assert.Equal(t, a.Run(events), b.Run(events))
	for set := uint64(0); set < 8; set++ {
		assert.Equal(t, a.Lines(set), b.Lines(set))
	}
}

func TestCache_Reset_ReturnsToColdState(t *testing.T) {
	c := newTestCache(t, 2, 2, 2)
	events := randomEvents(3, 500, 256)
	first := c.Run(events)

	c.Reset()

	assert.Equal(t, Statistics{}, c.Statistics())
	assert.Zero(t, c.Clock())
	for set := uint64(0); set < 4; set++ {
		for _, l := range c.Lines(set) {
			assert.Equal(t, Line{}, l)
		}
	}
	assert.Equal(t, first, c.Run(events), "replay after Reset must match a fresh cache")
}

func TestCache_Replay_LazyStreamMatchesRun(t *testing.T) {
	events := randomEvents(11, 1000, 1024)
	lazy := func(yield func(AccessEvent) bool) {
		for _, ev := range events {
			if !yield(ev) {
				return
			}
		}
	}

	a := newTestCache(t, 2, 2, 3)
	b := newTestCache(t, 2, 2, 3)

	assert.Equal(t, a.Run(events), b.Replay(lazy))
}

func TestCache_Recorder_CapturesEveryDecision(t *testing.T) {
	// GIVEN a cache with an attached recorder
	c := newTestCache(t, 0, 1, 0)
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelAccesses})
	c.SetRecorder(st)

	// WHEN the forced-eviction sequence is replayed
	c.Run(loads(0x0, 0x1, 0x0))

	// THEN one record per access is kept, in order, with csim labels
	require.Len(t, st.Accesses, 3)
	assert.Equal(t, trace.OutcomeMiss, st.Accesses[0].Outcome)
	assert.Equal(t, trace.OutcomeMissEviction, st.Accesses[1].Outcome)
	assert.Equal(t, trace.OutcomeMissEviction, st.Accesses[2].Outcome)
	assert.Equal(t, uint64(0x1), st.Accesses[2].EvictedTag)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{st.Accesses[0].Seq, st.Accesses[1].Seq, st.Accesses[2].Seq})
	assert.Equal(t, "L", st.Accesses[0].Op)

	// AND detaching the recorder stops recording
	c.SetRecorder(nil)
	c.Process(AccessEvent{Op: Load, Address: 0x0})
	assert.Len(t, st.Accesses, 3)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "hit", Hit.String())
	assert.Equal(t, "miss", Miss.String())
	assert.Equal(t, "miss eviction", MissEviction.String())
	assert.Equal(t, string(trace.OutcomeMissEviction), MissEviction.String())
}
