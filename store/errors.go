package store

import (
	"fmt"

	"github.com/roach88/persontime/timeline"
)

// Store error codes.
const (
	ErrFilterEmptyID  timeline.ErrorCode = "E400" // blank id in a filter
	ErrFilterConflict timeline.ErrorCode = "E401" // ids and id_range together
	ErrFilterRange    timeline.ErrorCode = "E402" // range bounds out of order
	ErrUnknownTable   timeline.ErrorCode = "E403" // missing or unknown table name
	ErrRunMismatch    timeline.ErrorCode = "E404" // reproduction diverged
)

// MismatchError reports a reproducibility failure: a recomputed run
// disagrees with the provenance stored for a table.
type MismatchError struct {
	Table  string
	Field  string // "fingerprint", "rows", or "person_time"
	Stored string
	Rerun  string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("[%s] table %s: %s mismatch: stored %s, rerun %s",
		ErrRunMismatch, e.Table, e.Field, e.Stored, e.Rerun)
}
