package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/cachesim/sim/workload"
)

// --- cachesim convert ---

var (
	convertInput      string
	convertHeaderPath string
	convertDataPath   string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a Valgrind lackey log into a normalized trace",
	Long: "Convert a Valgrind lackey log (plain or zstd) into a normalized trace: a YAML header " +
		"with counts and fingerprint plus a CSV of load/store events. Modify accesses are expanded " +
		"and instruction fetches dropped. A data path ending in .zst is compressed.",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		events, err := workload.LoadLackeyFile(convertInput)
		if err != nil {
			logrus.Fatalf("Conversion failed: %v", err)
		}
		header := workload.NewTraceHeader(convertInput, events)
		header.CreatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := workload.ExportAccessTrace(header, events, convertHeaderPath, convertDataPath); err != nil {
			logrus.Fatalf("Conversion failed: %v", err)
		}
		logrus.Infof("Wrote %d events (%d loads, %d stores, fingerprint %s) to %s",
			header.Events, header.Loads, header.Stores, header.Fingerprint, convertDataPath)
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertInput, "trace", "t", "", "Valgrind lackey trace file (plain or zstd)")
	convertCmd.Flags().StringVar(&convertHeaderPath, "header-out", "trace.yaml", "Output path for the trace header")
	convertCmd.Flags().StringVar(&convertDataPath, "data-out", "trace.csv", "Output path for the trace data (.zst to compress)")
	convertCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	_ = convertCmd.MarkFlagRequired("trace")

	rootCmd.AddCommand(convertCmd)
}
