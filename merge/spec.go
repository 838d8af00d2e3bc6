package merge

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/roach88/persontime/timeline"
)

// Configuration error codes (E200-E249).
const (
	ErrInputCount      timeline.ErrorCode = "E200" // fewer than two inputs
	ErrUnknownColumn   timeline.ErrorCode = "E201" // spec names a column the table lacks
	ErrColumnCollision timeline.ErrorCode = "E202" // two carried columns share an output name
	ErrIndicatorRef    timeline.ErrorCode = "E203" // indicator mode without reference states
	ErrReservedColumn  timeline.ErrorCode = "E204" // output column uses a structural name
	ErrInputSpecCount  timeline.ErrorCode = "E205" // len(Inputs) does not match the input tables
)

// Data error codes (E250-E299).
const (
	ErrNotCanonical timeline.ErrorCode = "E250" // input table fails the canonical check
	ErrIDMismatch   timeline.ErrorCode = "E251" // id present in some inputs but not all
	ErrEmptyInput   timeline.ErrorCode = "E252" // input table has no rows
)

// DefaultIndicatorColumn names the joint-exposure indicator when the
// indicator spec leaves it empty.
const DefaultIndicatorColumn = "joint_exposure"

// InputSpec configures how one input table's columns are carried into the
// output. The zero value carries every column under its own name.
type InputSpec struct {
	// Columns selects and orders the value columns carried from this
	// input. Empty means all columns in source order.
	Columns []string

	// Rename maps a carried source column to its output name.
	Rename map[string]string

	// Prefix prepends to carried column names not covered by Rename.
	Prefix string

	// Continuous names carried columns holding accumulated quantities.
	// When a source row is shortened by intersection, such values rescale
	// by the ratio of new to original duration.
	Continuous []string

	// Reference is this input's reference state, consulted by the
	// indicator mode. Required there, ignored otherwise.
	Reference timeline.Value
}

// IndicatorSpec switches the output to a single joint-exposure column: 1
// where every input's state column is away from its reference, 0 otherwise,
// Missing when any input's state is missing.
type IndicatorSpec struct {
	// Column names the indicator. Default "joint_exposure".
	Column string
}

func (i *IndicatorSpec) column() string {
	if i.Column == "" {
		return DefaultIndicatorColumn
	}
	return i.Column
}

// Spec is the immutable configuration of one intersection run.
type Spec struct {
	// Inputs configures the tables positionally. Empty applies the zero
	// InputSpec to every table; otherwise the length must match the number
	// of tables passed to Run.
	Inputs []InputSpec

	// Indicator, when set, replaces carried columns with the joint
	// indicator.
	Indicator *IndicatorSpec

	// Force demotes structural data errors (non-canonical inputs, ids
	// missing from some inputs) to run warnings and continues on the
	// usable intersection. Zero value is strict.
	Force bool
}

// Validate checks the statically checkable parts of the spec. Problems that
// depend on the input tables' actual columns surface from Run instead.
func (s Spec) Validate() timeline.ConfigErrors {
	var errs timeline.ConfigErrors

	if s.Indicator != nil {
		if timeline.ReservedColumn(s.Indicator.column()) {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrReservedColumn,
				Field:   "indicator.column",
				Message: fmt.Sprintf("%q is a structural column name", s.Indicator.column()),
			})
		}
		if len(s.Inputs) == 0 {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrIndicatorRef,
				Field:   "inputs",
				Message: "indicator mode requires per-input reference states",
			})
		}
		for i, in := range s.Inputs {
			if in.Reference == nil {
				errs = append(errs, timeline.ConfigError{
					Code:    ErrIndicatorRef,
					Field:   fmt.Sprintf("inputs[%d].reference", i),
					Message: "indicator mode requires a reference state",
				})
			}
		}
	}

	for i, in := range s.Inputs {
		for _, name := range in.Rename {
			if timeline.ReservedColumn(name) {
				errs = append(errs, timeline.ConfigError{
					Code:    ErrReservedColumn,
					Field:   fmt.Sprintf("inputs[%d].rename", i),
					Message: fmt.Sprintf("%q is a structural column name", name),
				})
			}
		}
	}

	return errs
}

// canonical renders the spec deterministically for fingerprinting.
func (s Spec) canonical() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "engine=merge\n")
	fmt.Fprintf(&b, "inputs=%d\n", len(s.Inputs))
	for i, in := range s.Inputs {
		for _, c := range in.Columns {
			fmt.Fprintf(&b, "input.%d.column=%s\n", i, c)
		}
		keys := make([]string, 0, len(in.Rename))
		for k := range in.Rename {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "input.%d.rename=%s:%s\n", i, k, in.Rename[k])
		}
		if in.Prefix != "" {
			fmt.Fprintf(&b, "input.%d.prefix=%s\n", i, in.Prefix)
		}
		for _, c := range in.Continuous {
			fmt.Fprintf(&b, "input.%d.continuous=%s\n", i, c)
		}
		if in.Reference != nil {
			fmt.Fprintf(&b, "input.%d.reference=%s\n", i, timeline.Render(in.Reference))
		}
	}
	if s.Indicator != nil {
		fmt.Fprintf(&b, "indicator=%s\n", s.Indicator.column())
	}
	fmt.Fprintf(&b, "force=%t\n", s.Force)
	return b.Bytes()
}

// Fingerprint returns the domain-separated content hash of the spec.
func (s Spec) Fingerprint() string {
	return timeline.Fingerprint(timeline.DomainSpec, s.canonical())
}
