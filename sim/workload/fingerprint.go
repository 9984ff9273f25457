package workload

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/inference-sim/cachesim/sim"
)

// Fingerprint returns a 64-bit xxh3 digest of an access sequence. Two
// sequences with the same operations, addresses and sizes in the same order
// have the same fingerprint, so a results file can be tied to its input.
func Fingerprint(events []sim.AccessEvent) uint64 {
	h := xxh3.New()
	buf := make([]byte, 0, 10)
	for _, ev := range events {
		buf = buf[:0]
		buf = append(buf, byte(ev.Op))
		buf = binary.LittleEndian.AppendUint64(buf, ev.Address)
		buf = append(buf, ev.Size)
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

// FormatFingerprint renders a fingerprint as fixed-width hex.
func FormatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}
