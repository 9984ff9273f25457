// Package trace provides per-access decision recording for cache replays.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// Outcome is the verbose label of an access resolution:
// "hit", "miss" or "miss eviction".
type Outcome string

const (
	OutcomeHit          Outcome = "hit"
	OutcomeMiss         Outcome = "miss"
	OutcomeMissEviction Outcome = "miss eviction"
)

// IsMiss reports whether the access was not served from the cache.
func (o Outcome) IsMiss() bool {
	return o == OutcomeMiss || o == OutcomeMissEviction
}

// AccessRecord captures how a single access was resolved.
type AccessRecord struct {
	Seq        uint64  // logical time of the access (1-based)
	Op         string  // "L" or "S"
	Address    uint64  // accessed byte address
	Size       uint8   // access width, informational
	Tag        uint64  // tag field of Address
	SetIndex   uint64  // set-index field of Address
	Way        int     // line index that served or received the block
	Outcome    Outcome // hit, miss, or miss eviction
	EvictedTag uint64  // replaced tag; only meaningful for OutcomeMissEviction
}
