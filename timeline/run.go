package timeline

import (
	"github.com/google/uuid"
)

// RunInfo records the provenance of one produced table: a run identifier,
// the fingerprint of the producing spec, and summary counts. Attached to
// every producer result so downstream consumers can audit exactly what ran.
type RunInfo struct {
	RunID       string   `json:"run_id"`
	Fingerprint string   `json:"fingerprint"`
	Subjects    int64    `json:"subjects"`
	Rows        int64    `json:"rows"`
	PersonTime  int64    `json:"person_time"`
	Warnings    []string `json:"warnings,omitempty"`
}

// RunIDGenerator produces run identifiers. Production uses UUIDv7Generator;
// tests substitute a fixed generator for byte-stable golden output.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, making run ids
// sortable by creation time. This is helpful when scanning stored runs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
