// Package testutil provides shared test infrastructure for the cache simulator.
// It holds the golden dataset types and the helpers that locate the sample
// traces under testdata/.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one trace replayed against one geometry.
type GoldenTestCase struct {
	Name      string        `json:"name"`
	Trace     string        `json:"trace"` // file name under testdata/traces/
	SetBits   int           `json:"set_bits"`
	Lines     int           `json:"lines"`
	BlockBits int           `json:"block_bits"`
	Metrics   GoldenMetrics `json:"metrics"`
}

// GoldenMetrics represents the expected counters of a golden test case.
type GoldenMetrics struct {
	// Exact match
	Accesses  uint64 `json:"accesses"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`

	// Rounded to six decimals in the dataset
	HitRate float64 `json:"hit_rate"`
}

// testdataDir resolves testdata/ relative to this source file:
// sim/internal/testutil/ → testdata/.
func testdataDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata")
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	path := filepath.Join(testdataDir(t), "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// TracePath returns the path of a sample trace under testdata/traces/.
func TracePath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testdataDir(t), "traces", name)
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
