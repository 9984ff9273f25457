// Tracks the aggregate outcome counters of a replay.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Statistics holds the running hit/miss/eviction counters of a Cache.
// Every counter only ever grows during a run; Hits+Misses always equals
// the number of processed accesses and Evictions never exceeds Misses.
type Statistics struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Accesses returns the number of accesses the counters account for.
func (s Statistics) Accesses() uint64 {
	return s.Hits + s.Misses
}

// HitRate returns Hits/Accesses, or 0 before any access.
func (s Statistics) HitRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Accesses())
}

// MissRate returns Misses/Accesses, or 0 before any access.
func (s Statistics) MissRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Accesses())
}

// String renders the counters in the classic csim summary form.
func (s Statistics) String() string {
	return fmt.Sprintf("hits:%d misses:%d evictions:%d", s.Hits, s.Misses, s.Evictions)
}

// Print writes the one-line summary followed by a newline.
func (s Statistics) Print(w io.Writer) error {
	_, err := fmt.Fprintln(w, s.String())
	return err
}

// Results is the machine-readable record of a complete run.
type Results struct {
	Geometry         GeometryResult `json:"geometry"`
	Statistics       Statistics     `json:"statistics"`
	Accesses         uint64         `json:"accesses"`
	HitRate          float64        `json:"hit_rate"`
	TraceSource      string         `json:"trace_source,omitempty"`
	TraceFingerprint string         `json:"trace_fingerprint,omitempty"`
}

// GeometryResult is the JSON view of a Geometry.
type GeometryResult struct {
	SetBits     uint   `json:"set_bits"`
	LinesPerSet int    `json:"lines"`
	BlockBits   uint   `json:"block_bits"`
	Sets        int    `json:"sets"`
	BlockSize   uint64 `json:"block_size"`
}

// NewResults assembles the result record for a finished run.
func NewResults(geom Geometry, stats Statistics) Results {
	return Results{
		Geometry: GeometryResult{
			SetBits:     geom.SetBits,
			LinesPerSet: geom.LinesPerSet,
			BlockBits:   geom.BlockBits,
			Sets:        geom.NumSets(),
			BlockSize:   geom.BlockSize(),
		},
		Statistics: stats,
		Accesses:   stats.Accesses(),
		HitRate:    stats.HitRate(),
	}
}

// SaveResults writes r as indented JSON to path.
func (r Results) SaveResults(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing results file %s: %w", path, err)
	}
	logrus.Debugf("Successfully wrote results to '%s'", path)
	return nil
}
