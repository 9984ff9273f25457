package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/cachesim/sim"
	"github.com/inference-sim/cachesim/sim/workload"
)

// SweepFile lists the geometries to compare against one trace.
type SweepFile struct {
	Geometries []SweepEntry `yaml:"geometries"`
}

// SweepEntry is one geometry of a sweep. It starts from an optional preset;
// nil pointer fields mean "not set" and keep the preset's value.
type SweepEntry struct {
	Name      string `yaml:"name"`
	Preset    string `yaml:"preset"`
	SetBits   *int   `yaml:"set_bits"`
	Lines     *int   `yaml:"lines"`
	BlockBits *int   `yaml:"block_bits"`
}

// namedGeometry is a validated sweep entry.
type namedGeometry struct {
	Name     string
	Geometry sim.Geometry
}

// SweepResult is the outcome of one geometry in a sweep.
type SweepResult struct {
	Name    string      `json:"name"`
	Results sim.Results `json:"results"`
}

var (
	sweepFilePath string
	parallelism   int
)

// loadSweepFile parses a sweep YAML file with strict field checking.
func loadSweepFile(path string) (*SweepFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sweep file: %w", err)
	}
	var sf SweepFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sf); err != nil {
		return nil, fmt.Errorf("parsing sweep file: %w", err)
	}
	if len(sf.Geometries) == 0 {
		return nil, fmt.Errorf("sweep file %s lists no geometries", path)
	}
	return &sf, nil
}

// resolve validates every entry against the presets in cfg. All geometries
// are checked before any replay starts.
func (sf *SweepFile) resolve(cfg Config) ([]namedGeometry, error) {
	out := make([]namedGeometry, 0, len(sf.Geometries))
	seen := make(map[string]bool)
	for i, entry := range sf.Geometries {
		var s, e, b int
		if entry.Preset != "" {
			p, ok := cfg.Geometries[entry.Preset]
			if !ok {
				return nil, fmt.Errorf("sweep entry %d: unknown preset %q", i, entry.Preset)
			}
			s, e, b = p.SetBits, p.Lines, p.BlockBits
		} else if entry.SetBits == nil || entry.Lines == nil || entry.BlockBits == nil {
			return nil, fmt.Errorf("sweep entry %d: set_bits, lines and block_bits are required without a preset", i)
		}
		if entry.SetBits != nil {
			s = *entry.SetBits
		}
		if entry.Lines != nil {
			e = *entry.Lines
		}
		if entry.BlockBits != nil {
			b = *entry.BlockBits
		}
		geom, err := sim.NewGeometry(s, e, b)
		if err != nil {
			return nil, fmt.Errorf("sweep entry %d: %w", i, err)
		}

		name := entry.Name
		if name == "" {
			name = entry.Preset
		}
		if name == "" {
			name = geom.String()
		}
		if seen[name] {
			return nil, fmt.Errorf("sweep entry %d: duplicate name %q", i, name)
		}
		seen[name] = true
		out = append(out, namedGeometry{Name: name, Geometry: geom})
	}
	return out, nil
}

// runSweep replays events against every geometry. Each geometry gets its own
// Cache, so replays run in parallel while each one stays strictly in order.
// Results keep the order of geoms.
func runSweep(geoms []namedGeometry, events []sim.AccessEvent, limit int) ([]SweepResult, error) {
	results := make([]SweepResult, len(geoms))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, ng := range geoms {
		g.Go(func() error {
			cache, err := sim.NewCache(ng.Geometry)
			if err != nil {
				return fmt.Errorf("%s: %w", ng.Name, err)
			}
			stats := cache.Run(events)
			logrus.Debugf("Sweep %s (%v): %v", ng.Name, ng.Geometry, stats)
			results[i] = SweepResult{Name: ng.Name, Results: sim.NewResults(ng.Geometry, stats)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// printSweepTable writes a fixed-width comparison table.
func printSweepTable(w io.Writer, results []SweepResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tGEOMETRY\tHITS\tMISSES\tEVICTIONS\tHIT RATE")
	for _, r := range results {
		g := r.Results.Geometry
		st := r.Results.Statistics
		fmt.Fprintf(tw, "%s\ts=%d E=%d b=%d\t%d\t%d\t%d\t%.2f%%\n",
			r.Name, g.SetBits, g.LinesPerSet, g.BlockBits,
			st.Hits, st.Misses, st.Evictions, 100*r.Results.HitRate)
	}
	return tw.Flush()
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Replay one memory trace against several cache geometries",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		sf, err := loadSweepFile(sweepFilePath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		var cfg Config
		if _, statErr := os.Stat(defaultsFilePath); statErr == nil {
			if cfg, err = loadDefaultsConfig(defaultsFilePath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		geoms, err := sf.resolve(cfg)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		source := traceSource()
		events, err := source.Load()
		if err != nil {
			logrus.Fatalf("Unable to load trace: %v", err)
		}
		logrus.Infof("Sweeping %d geometries over %d accesses from %s", len(geoms), len(events), source)

		results, err := runSweep(geoms, events, parallelism)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		if err := printSweepTable(os.Stdout, results); err != nil {
			logrus.Fatalf("Writing sweep table: %v", err)
		}

		if resultsPath != "" {
			fp := workload.FormatFingerprint(workload.Fingerprint(events))
			for i := range results {
				results[i].Results.TraceSource = source.String()
				results[i].Results.TraceFingerprint = fp
			}
			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				logrus.Fatalf("Marshaling sweep results: %v", err)
			}
			if err := os.WriteFile(resultsPath, append(data, '\n'), 0644); err != nil {
				logrus.Fatalf("Writing sweep results: %v", err)
			}
		}
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepFilePath, "sweep", "", "YAML file listing the geometries to compare")
	sweepCmd.Flags().IntVar(&parallelism, "parallelism", runtime.GOMAXPROCS(0), "Maximum number of geometries replayed concurrently")
	sweepCmd.Flags().StringVar(&resultsPath, "results-path", "", "Write all results as a JSON array to this file")
	registerTraceFlags(sweepCmd)
	_ = sweepCmd.MarkFlagRequired("sweep")

	rootCmd.AddCommand(sweepCmd)
}
