// sim/cache.go
package sim

import (
	"fmt"
	"iter"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/cachesim/sim/trace"
)

// Line is one storage slot of a set. Only occupancy, tag and recency are
// tracked; block contents are not modeled.
type Line struct {
	Valid      bool   // whether the line currently holds a block
	Tag        uint64 // tag of the resident block (meaningful only if Valid)
	LastAccess uint64 // logical time of the last hit or fill
}

// Set is a fixed window of LinesPerSet lines inside the cache's line arena.
type Set struct {
	lines []Line
}

// lookup scans every line of the set for a valid line holding tag.
func (s *Set) lookup(tag uint64) (way int, ok bool) {
	for i := range s.lines {
		if s.lines[i].Valid && s.lines[i].Tag == tag {
			return i, true
		}
	}
	return -1, false
}

// firstInvalid returns the lowest-indexed empty line, if any.
func (s *Set) firstInvalid() (way int, ok bool) {
	for i := range s.lines {
		if !s.lines[i].Valid {
			return i, true
		}
	}
	return -1, false
}

// victim returns the least recently used line. Ties go to the lowest index.
// A set always has at least one line, so a victim always exists.
func (s *Set) victim() int {
	way := 0
	for i := 1; i < len(s.lines); i++ {
		if s.lines[i].LastAccess < s.lines[way].LastAccess {
			way = i
		}
	}
	return way
}

// fill installs tag into the given way and stamps it with now.
func (s *Set) fill(way int, tag uint64, now uint64) {
	s.lines[way] = Line{Valid: true, Tag: tag, LastAccess: now}
}

// Outcome is the resolution of a single access.
type Outcome int

const (
	// Hit: a valid line in the target set already held the tag.
	Hit Outcome = iota
	// Miss: the tag was absent and an empty line received it.
	Miss
	// MissEviction: the tag was absent, the set was full, and the LRU line was replaced.
	MissEviction
)

// String returns the csim-style verbose label for the outcome.
func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case MissEviction:
		return "miss eviction"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// AccessResult describes how Process resolved one access.
type AccessResult struct {
	Outcome    Outcome
	Partition  AddressPartition
	Way        int    // line index within the set that served or received the block
	EvictedTag uint64 // tag that was replaced; only meaningful for MissEviction
}

// Cache is a set-associative cache model with LRU replacement.
// It is owned by a single caller and must be driven from one goroutine:
// outcomes depend on the exact order of accesses.
type Cache struct {
	geom  Geometry
	lines []Line // arena of NumSets*LinesPerSet lines, allocated once
	sets  []Set  // fixed windows into lines
	clock uint64 // logical time; advanced once per processed access
	stats Statistics

	recorder *trace.SimulationTrace // optional per-access decision trace
}

// NewCache builds a cold cache for the given geometry. All lines start
// invalid with the shared baseline timestamp 0.
func NewCache(geom Geometry) (*Cache, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if err := geom.checkAllocatable(); err != nil {
		return nil, err
	}
	numSets := geom.NumSets()
	c := &Cache{
		geom:  geom,
		lines: make([]Line, geom.TotalLines()),
		sets:  make([]Set, numSets),
	}
	for i := range c.sets {
		lo := i * geom.LinesPerSet
		c.sets[i] = Set{lines: c.lines[lo : lo+geom.LinesPerSet : lo+geom.LinesPerSet]}
	}
	logrus.Debugf("Cache constructed: %v (%d sets, %d tag bits)", geom, numSets, geom.TagBits())
	return c, nil
}

// Geometry returns the geometry the cache was built with.
func (c *Cache) Geometry() Geometry {
	return c.geom
}

// SetRecorder attaches a decision trace; every subsequent access appends one
// record to it. Passing nil disables recording.
func (c *Cache) SetRecorder(st *trace.SimulationTrace) {
	c.recorder = st
}

// Process runs one access through the hit / store-into-empty / evict-LRU
// procedure and updates the statistics. Each access yields exactly one of
// hit, miss, or miss with eviction.
func (c *Cache) Process(ev AccessEvent) AccessResult {
	p := c.geom.Decompose(ev.Address)
	set := &c.sets[p.SetIndex]
	c.clock++
	res := AccessResult{Partition: p}

	if way, ok := set.lookup(p.Tag); ok {
		set.lines[way].LastAccess = c.clock
		c.stats.Hits++
		res.Outcome, res.Way = Hit, way
	} else {
		c.stats.Misses++
		if way, ok := set.firstInvalid(); ok {
			set.fill(way, p.Tag, c.clock)
			res.Outcome, res.Way = Miss, way
		} else {
			way := set.victim()
			res.EvictedTag = set.lines[way].Tag
			set.fill(way, p.Tag, c.clock)
			c.stats.Evictions++
			res.Outcome, res.Way = MissEviction, way
		}
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Tracef("%v -> set %d way %d: %v", ev, p.SetIndex, res.Way, res.Outcome)
	}
	c.record(ev, res)
	return res
}

func (c *Cache) record(ev AccessEvent, res AccessResult) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordAccess(trace.AccessRecord{
		Seq:        c.clock,
		Op:         ev.Op.String(),
		Address:    ev.Address,
		Size:       ev.Size,
		Tag:        res.Partition.Tag,
		SetIndex:   res.Partition.SetIndex,
		Way:        res.Way,
		Outcome:    trace.Outcome(res.Outcome.String()),
		EvictedTag: res.EvictedTag,
	})
}

// Replay processes a (possibly lazily produced) stream of accesses in order
// and returns the statistics afterwards.
func (c *Cache) Replay(events iter.Seq[AccessEvent]) Statistics {
	for ev := range events {
		c.Process(ev)
	}
	return c.stats
}

// Run processes a materialized access sequence in order.
func (c *Cache) Run(events []AccessEvent) Statistics {
	return c.Replay(slices.Values(events))
}

// Statistics returns a snapshot of the running counters.
func (c *Cache) Statistics() Statistics {
	return c.stats
}

// Clock returns the number of accesses processed since construction or the last Reset.
func (c *Cache) Clock() uint64 {
	return c.clock
}

// Lines returns a copy of the lines of one set, for inspection.
func (c *Cache) Lines(setIndex uint64) []Line {
	return slices.Clone(c.sets[setIndex].lines)
}

// Reset returns the cache to its cold state without reallocating: all lines
// invalid, clock and counters zeroed. An attached recorder is kept.
func (c *Cache) Reset() {
	clear(c.lines)
	c.clock = 0
	c.stats = Statistics{}
}
