package trace

import (
	"bufio"
	"fmt"
	"io"
)

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelAccesses captures one record per processed access.
	TraceLevelAccesses TraceLevel = "accesses"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelAccesses: true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects access records during a replay.
type SimulationTrace struct {
	Config   TraceConfig
	Accesses []AccessRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Accesses: make([]AccessRecord, 0),
	}
}

// RecordAccess appends an access record.
func (st *SimulationTrace) RecordAccess(record AccessRecord) {
	st.Accesses = append(st.Accesses, record)
}

// WriteVerbose writes one line per recorded access in csim verbose form,
// e.g. "L 10,1 miss eviction". A nil trace writes nothing.
func WriteVerbose(w io.Writer, st *SimulationTrace) error {
	if st == nil {
		return nil
	}
	bw := bufio.NewWriter(w)
	for _, a := range st.Accesses {
		if _, err := fmt.Fprintf(bw, "%s %x,%d %s\n", a.Op, a.Address, a.Size, a.Outcome); err != nil {
			return fmt.Errorf("writing access %d: %w", a.Seq, err)
		}
	}
	return bw.Flush()
}
