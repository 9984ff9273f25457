package sim

import "fmt"

// Operation is the kind of data access replayed against the cache.
// Combined load+store accesses are expanded upstream, and instruction
// fetches never reach the engine.
type Operation int

const (
	Load Operation = iota
	Store
)

// String returns the one-letter code used in memory traces ("L" or "S").
func (op Operation) String() string {
	switch op {
	case Load:
		return "L"
	case Store:
		return "S"
	default:
		return fmt.Sprintf("Operation(%d)", int(op))
	}
}

// ParseOperation maps a one-letter code back to an Operation.
func ParseOperation(code string) (Operation, error) {
	switch code {
	case "L":
		return Load, nil
	case "S":
		return Store, nil
	default:
		return 0, fmt.Errorf("unknown operation %q", code)
	}
}

// AccessEvent is one normalized memory access.
// Size is informational only; it never influences hit/miss decisions,
// even for an access that spans a block boundary.
type AccessEvent struct {
	Op      Operation // Load or Store
	Address uint64    // byte address
	Size    uint8     // access width in bytes
}

// String renders the event in trace notation, e.g. "L 7ff0,8".
func (e AccessEvent) String() string {
	return fmt.Sprintf("%s %x,%d", e.Op, e.Address, e.Size)
}
