package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/cachesim/sim"
	"github.com/inference-sim/cachesim/sim/trace"
	"github.com/inference-sim/cachesim/sim/workload"
)

var (
	// Cache geometry
	setBits     int // Number of set index bits (s)
	linesPerSet int // Number of lines per set (E)
	blockBits   int // Number of block offset bits (b)

	// Trace input
	tracePath        string // Valgrind lackey log, optionally zstd-compressed
	normalizedHeader string // Normalized trace header (YAML)
	normalizedData   string // Normalized trace data (CSV, optionally zstd)

	// Presets
	presetName       string // Named geometry from the defaults file
	defaultsFilePath string // Path to defaults.yaml

	// Output
	verbose     bool   // Print one line per access
	resultsPath string // JSON results file
	logLevel    string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "Trace-driven set-associative cache simulator",
}

// setupLogging applies --log to the global logrus logger.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// traceSource assembles the trace input from CLI flags.
func traceSource() workload.TraceSource {
	return workload.TraceSource{
		LackeyPath: tracePath,
		HeaderPath: normalizedHeader,
		DataPath:   normalizedData,
	}
}

// resolveGeometry builds the geometry from an optional preset and the
// geometry flags. Flags that were set explicitly override the preset;
// without a preset all three flags are required.
func resolveGeometry(preset *GeometryPreset, s, e, b int, changed func(name string) bool) (sim.Geometry, error) {
	if preset != nil {
		if !changed("set-bits") {
			s = preset.SetBits
		}
		if !changed("lines") {
			e = preset.Lines
		}
		if !changed("block-bits") {
			b = preset.BlockBits
		}
	} else {
		for _, name := range []string{"set-bits", "lines", "block-bits"} {
			if !changed(name) {
				return sim.Geometry{}, fmt.Errorf("--%s is required when no --preset is given", name)
			}
		}
	}
	return sim.NewGeometry(s, e, b)
}

// runCmd executes one replay using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a memory trace against one cache geometry",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		var preset *GeometryPreset
		if presetName != "" {
			p, err := LookupPreset(defaultsFilePath, presetName)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			preset = &p
		}
		geom, err := resolveGeometry(preset, setBits, linesPerSet, blockBits, cmd.Flags().Changed)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		cache, err := sim.NewCache(geom)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		source := traceSource()
		events, err := source.Load()
		if err != nil {
			logrus.Fatalf("Unable to load trace: %v", err)
		}
		logrus.Infof("Starting replay of %d accesses from %s with geometry %v", len(events), source, geom)

		var recorder *trace.SimulationTrace
		if verbose {
			recorder = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelAccesses})
			cache.SetRecorder(recorder)
		}

		startTime := time.Now()
		stats := cache.Run(events)
		logrus.Infof("Replay finished in %v", time.Since(startTime))

		if err := trace.WriteVerbose(os.Stdout, recorder); err != nil {
			logrus.Fatalf("Writing verbose output: %v", err)
		}
		if recorder != nil {
			summary := trace.Summarize(recorder)
			logrus.Infof("Touched %d sets; hottest set %d with %d accesses",
				summary.UniqueSets, summary.HottestSet, summary.PerSet[summary.HottestSet].Accesses)
		}
		if err := stats.Print(os.Stdout); err != nil {
			logrus.Fatalf("Writing statistics: %v", err)
		}

		if resultsPath != "" {
			results := sim.NewResults(geom, stats)
			results.TraceSource = source.String()
			results.TraceFingerprint = workload.FormatFingerprint(workload.Fingerprint(events))
			if err := results.SaveResults(resultsPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerTraceFlags adds the trace input flags shared by run and sweep.
func registerTraceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&tracePath, "trace", "t", "", "Valgrind lackey trace file (plain or zstd)")
	cmd.Flags().StringVar(&normalizedHeader, "normalized-header", "", "Normalized trace header (YAML), from `cachesim convert`")
	cmd.Flags().StringVar(&normalizedData, "normalized-data", "", "Normalized trace data (CSV, plain or zstd), from `cachesim convert`")
	cmd.Flags().StringVar(&defaultsFilePath, "defaults", "defaults.yaml", "Path to the geometry presets file")
	cmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().IntVarP(&setBits, "set-bits", "s", 0, "Number of set index bits (2^s sets)")
	runCmd.Flags().IntVarP(&linesPerSet, "lines", "E", 1, "Number of lines per set (associativity)")
	runCmd.Flags().IntVarP(&blockBits, "block-bits", "b", 0, "Number of block offset bits (2^b bytes per block)")
	runCmd.Flags().StringVar(&presetName, "preset", "", "Named geometry from the defaults file; explicit -s/-E/-b override it")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the outcome of every access")
	runCmd.Flags().StringVar(&resultsPath, "results-path", "", "Write results as JSON to this file")
	registerTraceFlags(runCmd)

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
