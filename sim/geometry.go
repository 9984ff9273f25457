// sim/geometry.go
package sim

import (
	"fmt"
	"math"
	"math/bits"
)

// AddressBits is the width of every simulated address.
const AddressBits = 64

// Geometry fixes the shape of a simulated cache: 2^SetBits sets of
// LinesPerSet lines, each line covering 2^BlockBits bytes.
// A Geometry is immutable once validated by NewGeometry.
type Geometry struct {
	SetBits     uint // s: number of set-index bits
	BlockBits   uint // b: number of block-offset bits
	LinesPerSet int  // E: associativity (lines per set)
}

// ConfigurationError reports a geometry that cannot describe a cache.
// It is only ever returned at construction time.
type ConfigurationError struct {
	Field  string
	Value  int64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid cache geometry: %s=%d: %s", e.Field, e.Value, e.Reason)
}

// NewGeometry validates (s, E, b) and returns the corresponding Geometry.
func NewGeometry(setBits, linesPerSet, blockBits int) (Geometry, error) {
	if setBits < 0 {
		return Geometry{}, &ConfigurationError{Field: "set_bits", Value: int64(setBits), Reason: "must be non-negative"}
	}
	if blockBits < 0 {
		return Geometry{}, &ConfigurationError{Field: "block_bits", Value: int64(blockBits), Reason: "must be non-negative"}
	}
	g := Geometry{SetBits: uint(setBits), BlockBits: uint(blockBits), LinesPerSet: linesPerSet}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// Validate checks the geometry invariants: s + b <= 64 and E >= 1.
func (g Geometry) Validate() error {
	// Fields are checked one at a time first; their uint sum can wrap.
	if g.SetBits > AddressBits {
		return &ConfigurationError{Field: "set_bits", Value: clampInt64(g.SetBits), Reason: fmt.Sprintf("must not exceed %d address bits", AddressBits)}
	}
	if g.BlockBits > AddressBits {
		return &ConfigurationError{Field: "block_bits", Value: clampInt64(g.BlockBits), Reason: fmt.Sprintf("must not exceed %d address bits", AddressBits)}
	}
	if g.BlockBits > AddressBits-g.SetBits {
		return &ConfigurationError{
			Field:  "set_bits+block_bits",
			Value:  int64(g.SetBits + g.BlockBits),
			Reason: fmt.Sprintf("must not exceed %d address bits", AddressBits),
		}
	}
	if g.LinesPerSet < 1 {
		return &ConfigurationError{Field: "lines", Value: int64(g.LinesPerSet), Reason: "must be at least 1"}
	}
	return nil
}

func clampInt64(v uint) int64 {
	if uint64(v) > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// checkAllocatable rejects geometries whose line arena (2^s * E entries)
// does not fit in an int. Decomposition does not need this; NewCache does.
func (g Geometry) checkAllocatable() error {
	if g.SetBits >= bits.UintSize-1 || g.LinesPerSet > math.MaxInt/(1<<g.SetBits) {
		return &ConfigurationError{
			Field:  "set_bits",
			Value:  int64(g.SetBits),
			Reason: fmt.Sprintf("2^%d sets of %d lines cannot be allocated", g.SetBits, g.LinesPerSet),
		}
	}
	return nil
}

// TagBits is the number of high-order address bits that form the tag.
func (g Geometry) TagBits() uint {
	return AddressBits - g.SetBits - g.BlockBits
}

// NumSets returns 2^s. Only meaningful for geometries a Cache can be built for.
func (g Geometry) NumSets() int {
	return 1 << g.SetBits
}

// BlockSize returns the number of bytes covered by one line (2^b).
// It is 0 for b == 64, where a single block spans the whole address space.
func (g Geometry) BlockSize() uint64 {
	return 1 << g.BlockBits
}

// TotalLines returns the number of lines across all sets.
func (g Geometry) TotalLines() int {
	return g.NumSets() * g.LinesPerSet
}

// String renders the geometry with the usual csim flag names.
func (g Geometry) String() string {
	return fmt.Sprintf("s=%d E=%d b=%d", g.SetBits, g.LinesPerSet, g.BlockBits)
}

// AddressPartition is the (tag, set index, block offset) split of one address.
// It is computed per access and never stored.
type AddressPartition struct {
	Tag         uint64
	SetIndex    uint64
	BlockOffset uint64
}

// lowMask returns a mask of the n low-order bits; n may be 64.
func lowMask(n uint) uint64 {
	if n >= AddressBits {
		return math.MaxUint64
	}
	return 1<<n - 1
}

// Decompose splits addr into its tag, set-index and block-offset fields.
// It is total over all addresses for any valid geometry. When s + b == 64
// every address has tag 0.
func (g Geometry) Decompose(addr uint64) AddressPartition {
	// Go defines x >> 64 == 0 for unsigned x, which covers s + b == 64.
	return AddressPartition{
		Tag:         addr >> (g.SetBits + g.BlockBits),
		SetIndex:    (addr >> g.BlockBits) & lowMask(g.SetBits),
		BlockOffset: addr & lowMask(g.BlockBits),
	}
}

// Compose reassembles an address from its fields; it is the inverse of
// Decompose for the same geometry.
func (g Geometry) Compose(p AddressPartition) uint64 {
	return p.Tag<<(g.SetBits+g.BlockBits) |
		(p.SetIndex&lowMask(g.SetBits))<<g.BlockBits |
		p.BlockOffset&lowMask(g.BlockBits)
}
