package workload

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/cachesim/sim"
)

// TraceSource selects where a replay's accesses come from: either a lackey
// log (LackeyPath) or a normalized header+data pair, never both.
type TraceSource struct {
	LackeyPath string
	HeaderPath string
	DataPath   string
}

// Validate checks that exactly one input form is configured.
func (ts TraceSource) Validate() error {
	lackey := ts.LackeyPath != ""
	normalized := ts.HeaderPath != "" || ts.DataPath != ""
	switch {
	case lackey && normalized:
		return errors.New("trace source: a lackey trace and a normalized trace are mutually exclusive")
	case !lackey && !normalized:
		return errors.New("trace source: no trace given")
	case normalized && (ts.HeaderPath == "" || ts.DataPath == ""):
		return errors.New("trace source: a normalized trace needs both a header and a data file")
	}
	return nil
}

// String names the input for logs and results.
func (ts TraceSource) String() string {
	if ts.LackeyPath != "" {
		return ts.LackeyPath
	}
	return ts.DataPath
}

// Load materializes the full access sequence. Ingestion completes (or fails)
// before any access is simulated.
func (ts TraceSource) Load() ([]sim.AccessEvent, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	if ts.LackeyPath != "" {
		return LoadLackeyFile(ts.LackeyPath)
	}
	trace, err := LoadAccessTrace(ts.HeaderPath, ts.DataPath)
	if err != nil {
		return nil, fmt.Errorf("loading normalized trace: %w", err)
	}
	logrus.Debugf("Loaded normalized trace %s (%d events, source %q)", ts.DataPath, len(trace.Events), trace.Header.Source)
	return trace.Events, nil
}
