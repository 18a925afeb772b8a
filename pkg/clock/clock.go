package clock

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Now returns the current instant. Callers that need only elapsed time
// should compare two Now() values with time.Since/Sub, which uses the
// monotonic component time.Time carries internally; Now never strips it.
func Now() time.Time {
	return time.Now()
}

// idCounter is process-local and shared by every Generator in the process,
// the counter half of each generated id.
var idCounter atomic.Uint64

// Generator produces opaque, collision-resistant identifiers. The zero
// value is ready to use.
type Generator struct {
	prefix string
}

// NewGenerator returns a Generator that prefixes every id it produces with
// prefix (e.g. "agent", "work", "claim"), purely for operator readability;
// uniqueness never depends on the prefix.
func NewGenerator(prefix string) Generator {
	return Generator{prefix: prefix}
}

// New composes a millisecond-resolution timestamp, a process-local
// monotonic counter, and a random uuid suffix. The timestamp and counter
// make ids roughly sortable by creation order for diagnostics; the uuid
// suffix is what makes cross-process collision effectively impossible.
// New never blocks and never fails.
func (g Generator) New() string {
	n := idCounter.Add(1)
	ts := time.Now().UnixMilli()
	suffix := uuid.New().String()
	if g.prefix == "" {
		return fmt.Sprintf("%x-%x-%s", ts, n, suffix)
	}
	return fmt.Sprintf("%s-%x-%x-%s", g.prefix, ts, n, suffix)
}

// NextVersion returns a VersionToken strictly greater than prev. Version
// tokens are per-WorkState, not process-global, so this is a pure
// function rather than a shared counter: monotonicity is enforced by the
// compare-and-swap discipline in pkg/storage, not by this function alone.
func NextVersion(prev uint64) uint64 {
	return prev + 1
}
