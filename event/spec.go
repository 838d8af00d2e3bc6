package event

import (
	"bytes"
	"fmt"

	"github.com/roach88/persontime/timeline"
)

// Configuration error codes (E300-E349).
const (
	ErrReservedColumn  timeline.ErrorCode = "E300" // output column uses a structural name
	ErrSemantics       timeline.ErrorCode = "E301" // unknown event semantics
	ErrCompetingCode   timeline.ErrorCode = "E302" // competing code reserved or repeated
	ErrColumnCollision timeline.ErrorCode = "E303" // two output columns share a name
	ErrUnit            timeline.ErrorCode = "E304" // unknown time unit
	ErrUnitUnused      timeline.ErrorCode = "E305" // time unit without a time column
	ErrUnknownColumn   timeline.ErrorCode = "E306" // continuous names a column the table lacks
)

// Data error codes (E350-E399).
const (
	ErrEmptyTable     timeline.ErrorCode = "E350" // interval table has no rows
	ErrNotCanonical   timeline.ErrorCode = "E351" // input table fails the canonical check
	ErrUnknownSubject timeline.ErrorCode = "E352" // event record for an id the table lacks
	ErrCompetingCount timeline.ErrorCode = "E353" // more competing dates than configured codes
)

// Semantics selects how a subject's history continues after an event.
type Semantics int

const (
	// Single treats the event as terminal: the row ending at the event
	// date is flagged and every later row is dropped (right-censoring).
	Single Semantics = iota

	// Recurring keeps the history running: every event date splits and
	// flags, and person-time after an event is retained.
	Recurring
)

// String implements fmt.Stringer.
func (m Semantics) String() string {
	switch m {
	case Single:
		return "single"
	case Recurring:
		return "recurring"
	default:
		return fmt.Sprintf("semantics(%d)", int(m))
	}
}

// ParseSemantics converts external text to a Semantics.
func ParseSemantics(s string) (Semantics, error) {
	switch s {
	case "", "single":
		return Single, nil
	case "recurring":
		return Recurring, nil
	default:
		return Single, fmt.Errorf("unknown event semantics %q", s)
	}
}

// DefaultGenerate names the flag column when the spec leaves it empty.
const DefaultGenerate = "failure"

// Spec is the immutable configuration of one event-splitting run.
type Spec struct {
	// Generate names the output status column: 0 censored, 1 primary
	// event, competing codes above. Default "failure".
	Generate string

	// Semantics selects terminal or recurring event handling.
	Semantics Semantics

	// Continuous names input columns holding accumulated quantities. When
	// a row is split at an event date, such values rescale by each part's
	// share of the original duration.
	Continuous []string

	// CompetingCodes assigns status codes to competing-date positions.
	// Empty assigns position i the code i+2. Codes 0 and 1 are reserved
	// for censored and primary.
	CompetingCodes []int64

	// TimeColumn, when set, appends each output row's duration in
	// TimeUnit as a final column.
	TimeColumn string

	// TimeUnit is the unit for TimeColumn. The zero value is days.
	TimeUnit timeline.Unit
}

func (s Spec) generate() string {
	if s.Generate == "" {
		return DefaultGenerate
	}
	return s.Generate
}

// Validate checks the spec for internal consistency. All problems are
// returned, not just the first. An empty result means the spec is runnable
// against any table whose columns fit it.
func (s Spec) Validate() timeline.ConfigErrors {
	var errs timeline.ConfigErrors

	if timeline.ReservedColumn(s.generate()) {
		errs = append(errs, timeline.ConfigError{
			Code:    ErrReservedColumn,
			Field:   "generate",
			Message: fmt.Sprintf("%q is a structural column name", s.generate()),
		})
	}

	if s.Semantics < Single || s.Semantics > Recurring {
		errs = append(errs, timeline.ConfigError{
			Code:    ErrSemantics,
			Field:   "semantics",
			Message: fmt.Sprintf("unknown semantics %d", int(s.Semantics)),
		})
	}

	seen := map[int64]bool{0: true, 1: true}
	for i, c := range s.CompetingCodes {
		if c < 0 || seen[c] {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrCompetingCode,
				Field:   fmt.Sprintf("competing_codes[%d]", i),
				Message: fmt.Sprintf("code %d is reserved or repeated", c),
			})
			continue
		}
		seen[c] = true
	}

	if s.TimeUnit < timeline.UnitDays || s.TimeUnit > timeline.UnitYears {
		errs = append(errs, timeline.ConfigError{
			Code:    ErrUnit,
			Field:   "time_unit",
			Message: fmt.Sprintf("unknown unit %d", int(s.TimeUnit)),
		})
	}

	switch {
	case s.TimeColumn == "" && s.TimeUnit != timeline.UnitDays:
		errs = append(errs, timeline.ConfigError{
			Code:    ErrUnitUnused,
			Field:   "time_unit",
			Message: "time unit given without a time column",
		})
	case s.TimeColumn != "" && timeline.ReservedColumn(s.TimeColumn):
		errs = append(errs, timeline.ConfigError{
			Code:    ErrReservedColumn,
			Field:   "time_column",
			Message: fmt.Sprintf("%q is a structural column name", s.TimeColumn),
		})
	case s.TimeColumn != "" && s.TimeColumn == s.generate():
		errs = append(errs, timeline.ConfigError{
			Code:    ErrColumnCollision,
			Field:   "time_column",
			Message: fmt.Sprintf("%q already names the status column", s.TimeColumn),
		})
	}

	return errs
}

// canonical renders the spec deterministically for fingerprinting.
func (s Spec) canonical() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "engine=event\n")
	fmt.Fprintf(&b, "generate=%s\n", s.generate())
	fmt.Fprintf(&b, "semantics=%s\n", s.Semantics)
	for _, c := range s.Continuous {
		fmt.Fprintf(&b, "continuous=%s\n", c)
	}
	for _, c := range s.CompetingCodes {
		fmt.Fprintf(&b, "compete_code=%d\n", c)
	}
	if s.TimeColumn != "" {
		fmt.Fprintf(&b, "time_column=%s\n", s.TimeColumn)
		fmt.Fprintf(&b, "time_unit=%s\n", s.TimeUnit)
	}
	return b.Bytes()
}

// Fingerprint returns the domain-separated content hash of the spec.
func (s Spec) Fingerprint() string {
	return timeline.Fingerprint(timeline.DomainSpec, s.canonical())
}
