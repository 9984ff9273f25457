package workload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/cachesim/sim"
)

// Lackey trace operation codes, as emitted by
// valgrind --tool=lackey --trace-mem=yes.
const (
	lackeyInstruction = "I"
	lackeyLoad        = "L"
	lackeyStore       = "S"
	lackeyModify      = "M"
)

// ErrMalformedLine is wrapped by every ParseError caused by the shape of a
// line rather than by one of its numeric fields.
var ErrMalformedLine = errors.New("malformed trace line")

// ParseError identifies the trace line that aborted ingestion.
type ParseError struct {
	Line int    // 1-based line number
	Text string // offending line, trimmed
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseLackey reads a Valgrind lackey memory trace and returns the normalized
// access sequence. Each line is "<op> <hex address>,<decimal size>" with
// optional leading whitespace. Modify ("M") expands to a Load immediately
// followed by a Store on the same address; instruction fetches ("I") are
// dropped. Blank or all-whitespace lines are skipped, not treated as
// malformed.
//
// Any other malformed line aborts the whole parse: a partially ingested
// trace would make the simulation meaningless, so no events are returned
// alongside an error.
func ParseLackey(r io.Reader) ([]sim.AccessEvent, error) {
	scanner := bufio.NewScanner(r)
	events := make([]sim.AccessEvent, 0, 1024)
	lineNo := 0
	dropped := 0

	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, &ParseError{Line: lineNo, Text: text,
				Err: fmt.Errorf("%w: expected 2 fields, got %d", ErrMalformedLine, len(fields))}
		}

		address, size, err := parseAddressSize(fields[1])
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: text, Err: err}
		}

		switch fields[0] {
		case lackeyLoad:
			events = append(events, sim.AccessEvent{Op: sim.Load, Address: address, Size: size})
		case lackeyStore:
			events = append(events, sim.AccessEvent{Op: sim.Store, Address: address, Size: size})
		case lackeyModify:
			events = append(events,
				sim.AccessEvent{Op: sim.Load, Address: address, Size: size},
				sim.AccessEvent{Op: sim.Store, Address: address, Size: size},
			)
		case lackeyInstruction:
			dropped++
		default:
			return nil, &ParseError{Line: lineNo, Text: text,
				Err: fmt.Errorf("%w: unknown operation %q", ErrMalformedLine, fields[0])}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning trace: %w", err)
	}

	logrus.Debugf("Parsed %d trace lines into %d accesses (%d instruction fetches dropped)",
		lineNo, len(events), dropped)
	return events, nil
}

// parseAddressSize parses "<hex address>,<decimal size>".
func parseAddressSize(field string) (uint64, uint8, error) {
	addrText, sizeText, ok := strings.Cut(field, ",")
	if !ok || strings.Contains(sizeText, ",") {
		return 0, 0, fmt.Errorf("%w: expected <address>,<size>, got %q", ErrMalformedLine, field)
	}
	address, err := strconv.ParseUint(addrText, 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing address %q: %w", addrText, err)
	}
	size, err := strconv.ParseUint(sizeText, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing size %q: %w", sizeText, err)
	}
	return address, uint8(size), nil
}

// LoadLackeyFile opens path (transparently decompressing zstd) and parses it
// as a lackey trace.
func LoadLackeyFile(path string) ([]sim.AccessEvent, error) {
	rc, err := OpenTrace(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	events, err := ParseLackey(rc)
	if err != nil {
		return nil, fmt.Errorf("parsing trace %s: %w", path, err)
	}
	return events, nil
}
