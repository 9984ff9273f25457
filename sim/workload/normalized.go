package workload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/cachesim/sim"
)

// NormalizedTraceVersion is the current normalized trace format version.
const NormalizedTraceVersion = 1

// TraceHeader captures metadata for a normalized access trace.
type TraceHeader struct {
	Version     int    `yaml:"trace_version"`
	Source      string `yaml:"source,omitempty"`     // path of the original lackey log
	CreatedAt   string `yaml:"created_at,omitempty"` // RFC 3339
	Events      int    `yaml:"events"`
	Loads       int    `yaml:"loads"`
	Stores      int    `yaml:"stores"`
	Fingerprint string `yaml:"fingerprint"` // xxh3 of the event stream, hex
}

// AccessTrace combines header and events for a complete normalized trace.
type AccessTrace struct {
	Header TraceHeader
	Events []sim.AccessEvent
}

// maxPreallocEvents bounds the capacity reserved from a header's event count.
const maxPreallocEvents = 1 << 16

// CSV column headers for the normalized trace format.
var normalizedColumns = []string{"op", "address", "size"}

// NewTraceHeader fills in the counts and fingerprint for events.
func NewTraceHeader(source string, events []sim.AccessEvent) *TraceHeader {
	h := &TraceHeader{
		Version:     NormalizedTraceVersion,
		Source:      source,
		Events:      len(events),
		Fingerprint: FormatFingerprint(Fingerprint(events)),
	}
	for _, ev := range events {
		if ev.Op == sim.Load {
			h.Loads++
		} else {
			h.Stores++
		}
	}
	return h
}

// ExportAccessTrace writes the trace header (YAML) and events (CSV) to
// separate files. A data path ending in .zst or .zstd is compressed.
func ExportAccessTrace(header *TraceHeader, events []sim.AccessEvent, headerPath, dataPath string) (err error) {
	headerData, err := yaml.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling trace header: %w", err)
	}
	if err := os.WriteFile(headerPath, headerData, 0644); err != nil {
		return fmt.Errorf("writing trace header: %w", err)
	}

	out, err := CreateTrace(dataPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing trace data: %w", closeErr)
		}
	}()

	writer := csv.NewWriter(out)
	if err := writer.Write(normalizedColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, ev := range events {
		row := []string{
			ev.Op.String(),
			"0x" + strconv.FormatUint(ev.Address, 16),
			strconv.FormatUint(uint64(ev.Size), 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// LoadAccessTrace reads a normalized trace header (YAML) and data (CSV,
// optionally zstd). Every row is validated; the first bad row aborts the
// load. The event count and fingerprint must match the header.
func LoadAccessTrace(headerPath, dataPath string) (*AccessTrace, error) {
	headerData, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("reading trace header: %w", err)
	}
	var header TraceHeader
	if err := yaml.Unmarshal(headerData, &header); err != nil {
		return nil, fmt.Errorf("parsing trace header: %w", err)
	}
	if header.Version != NormalizedTraceVersion {
		return nil, fmt.Errorf("unsupported trace_version %d (want %d)", header.Version, NormalizedTraceVersion)
	}
	if header.Events < 0 {
		return nil, fmt.Errorf("trace header declares a negative event count (%d)", header.Events)
	}

	in, err := OpenTrace(dataPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = len(normalizedColumns)

	columns, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if !slices.Equal(columns, normalizedColumns) {
		return nil, fmt.Errorf("CSV header %v does not match %v", columns, normalizedColumns)
	}

	// The header count is only a hint until the rows confirm it.
	events := make([]sim.AccessEvent, 0, min(header.Events, maxPreallocEvents))
	for row := 2; ; row++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		ev, err := parseNormalizedRow(rec)
		if err != nil {
			return nil, &ParseError{Line: row, Text: strings.Join(rec, ","), Err: err}
		}
		events = append(events, ev)
	}

	if len(events) != header.Events {
		return nil, fmt.Errorf("trace data has %d events, header declares %d", len(events), header.Events)
	}
	if got := FormatFingerprint(Fingerprint(events)); header.Fingerprint != "" && got != header.Fingerprint {
		return nil, fmt.Errorf("trace fingerprint %s does not match header %s", got, header.Fingerprint)
	}
	return &AccessTrace{Header: header, Events: events}, nil
}

func parseNormalizedRow(rec []string) (sim.AccessEvent, error) {
	op, err := sim.ParseOperation(rec[0])
	if err != nil {
		return sim.AccessEvent{}, err
	}
	hex, ok := strings.CutPrefix(rec[1], "0x")
	if !ok {
		return sim.AccessEvent{}, fmt.Errorf("address %q: missing 0x prefix", rec[1])
	}
	address, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return sim.AccessEvent{}, fmt.Errorf("parsing address %q: %w", rec[1], err)
	}
	size, err := strconv.ParseUint(rec[2], 10, 8)
	if err != nil {
		return sim.AccessEvent{}, fmt.Errorf("parsing size %q: %w", rec[2], err)
	}
	return sim.AccessEvent{Op: op, Address: address, Size: uint8(size)}, nil
}
