package harness

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/persontime/event"
	"github.com/roach88/persontime/expose"
	"github.com/roach88/persontime/timeline"
)

// Scenario defines a conformance test scenario.
// Scenarios build a small cohort, run it through the interval engines, and
// assert on the resulting table.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are stored
	// under testdata/golden/{name}.golden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is an optional fixed run id for deterministic provenance.
	// If empty, runs are numbered name-1, name-2, ... in stage order.
	RunID string `yaml:"run_id,omitempty"`

	// Windows lists the study windows, one per subject.
	Windows []WindowRow `yaml:"windows"`

	// Episodes lists the raw exposure episodes (closed day ranges).
	Episodes []EpisodeRow `yaml:"episodes,omitempty"`

	// Events lists outcome events for the event stage.
	Events []EventRow `yaml:"events,omitempty"`

	// Exposure configures the exposure stage. Required.
	Exposure *ExposureBlock `yaml:"exposure"`

	// Event configures the event stage. Optional; when present the
	// exposure result is fed through event splitting.
	Event *EventBlock `yaml:"event,omitempty"`

	// Assertions validate the final table.
	// Supported types: person_time, row_count, state_at, canonical,
	// monotone, no_reversion, flag_count, column_total.
	Assertions []Assertion `yaml:"assertions"`
}

// WindowRow is one study window. Exit is the exclusive end of coverage.
type WindowRow struct {
	ID    string `yaml:"id"`
	Entry int64  `yaml:"entry"`
	Exit  int64  `yaml:"exit"`
}

// EpisodeRow is one raw episode with a closed [start, stop] day range.
// Value may be an integer, float, string, or null for missing. Priority is
// the optional explicit rank for priority overlap resolution.
type EpisodeRow struct {
	ID       string `yaml:"id"`
	Start    int64  `yaml:"start"`
	Stop     int64  `yaml:"stop"`
	Value    any    `yaml:"value"`
	Priority int64  `yaml:"priority,omitempty"`
}

// EventRow is one outcome record. A null date means the subject never had
// the event. Competing holds one date slot per configured competing code,
// null where that risk did not occur.
type EventRow struct {
	ID        string   `yaml:"id"`
	Date      *int64   `yaml:"date"`
	Competing []*int64 `yaml:"competing,omitempty"`
}

// ExposureBlock mirrors the exposure stage options. Field names match the
// protocol schema so scenarios read like protocol fragments.
type ExposureBlock struct {
	Generate        string           `yaml:"generate,omitempty"`
	Reference       any              `yaml:"reference"`
	ReferenceLabel  string           `yaml:"reference_label,omitempty"`
	Overlap         string           `yaml:"overlap,omitempty"`
	Priority        []any            `yaml:"priority,omitempty"`
	CombineColumn   string           `yaml:"combine_column,omitempty"`
	Projection      string           `yaml:"projection,omitempty"`
	Unit            string           `yaml:"unit,omitempty"`
	DurationCuts    []float64        `yaml:"duration_cuts,omitempty"`
	RecencyCuts     []float64        `yaml:"recency_cuts,omitempty"`
	DoseCuts        []float64        `yaml:"dose_cuts,omitempty"`
	ByType          bool             `yaml:"bytype,omitempty"`
	Grace           int64            `yaml:"grace,omitempty"`
	GraceByValue    map[string]int64 `yaml:"grace_by_value,omitempty"`
	Merge           int64            `yaml:"merge,omitempty"`
	Lag             int64            `yaml:"lag,omitempty"`
	Washout         int64            `yaml:"washout,omitempty"`
	Fillgaps        int64            `yaml:"fillgaps,omitempty"`
	Carryforward    int64            `yaml:"carryforward,omitempty"`
	PointTime       bool             `yaml:"point_time,omitempty"`
	Window          *WindowClause    `yaml:"window,omitempty"`
	Switching       bool             `yaml:"switching,omitempty"`
	SwitchingDetail bool             `yaml:"switching_detail,omitempty"`
	StateTime       bool             `yaml:"state_time,omitempty"`
	Expand          string           `yaml:"expand,omitempty"`
}

// WindowClause restricts matched runs by duration. Max 0 means unbounded.
type WindowClause struct {
	Min int64 `yaml:"min,omitempty"`
	Max int64 `yaml:"max,omitempty"`
}

// EventBlock mirrors the event stage options.
type EventBlock struct {
	Generate       string   `yaml:"generate,omitempty"`
	Semantics      string   `yaml:"semantics,omitempty"`
	Continuous     []string `yaml:"continuous,omitempty"`
	CompetingCodes []int64  `yaml:"competing_codes,omitempty"`
	TimeColumn     string   `yaml:"time_column,omitempty"`
	TimeUnit       string   `yaml:"time_unit,omitempty"`
}

// Assertion validates one property of the final table.
type Assertion struct {
	// Type specifies the assertion type:
	// - "person_time": total days summed over rows equals total
	// - "row_count": number of rows equals count
	// - "state_at": the interval covering day for id carries value
	// - "canonical": the table passes canonical interval checks
	// - "monotone": column never decreases within a subject
	// - "no_reversion": column never returns to a state it left
	// - "flag_count": column is non-zero in exactly count rows
	// - "column_total": column sums to total within tolerance
	Type string `yaml:"type"`

	// ID scopes the assertion to one subject (person_time, state_at).
	// For person_time an empty id means the whole table.
	ID string `yaml:"id,omitempty"`

	// Day selects the interval containing it (state_at).
	Day int64 `yaml:"day,omitempty"`

	// Value is the expected state (state_at). May be an integer, float,
	// string, or null for missing. Integer and float states are distinct;
	// write 50.0 to match a float cell.
	Value any `yaml:"value,omitempty"`

	// Column names the value column (monotone, no_reversion, flag_count,
	// column_total, state_at). For state_at an empty column means the
	// first value column.
	Column string `yaml:"column,omitempty"`

	// Count is the expected number of rows (row_count, flag_count).
	Count int64 `yaml:"count,omitempty"`

	// Total is the expected sum (person_time, column_total).
	Total float64 `yaml:"total,omitempty"`

	// Tolerance is the allowed absolute deviation (column_total).
	// Zero means exact.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Assertion type constants.
const (
	AssertPersonTime  = "person_time"
	AssertRowCount    = "row_count"
	AssertStateAt     = "state_at"
	AssertCanonical   = "canonical"
	AssertMonotone    = "monotone"
	AssertNoReversion = "no_reversion"
	AssertFlagCount   = "flag_count"
	AssertColumnTotal = "column_total"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
// Stage semantics (enum spellings, cut ordering, reference state) are left
// to the engines, which report coded configuration errors.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Windows) == 0 {
		return fmt.Errorf("windows list is required and must be non-empty")
	}

	if s.Exposure == nil {
		return fmt.Errorf("exposure block is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, w := range s.Windows {
		if w.ID == "" {
			return fmt.Errorf("windows[%d]: id is required", i)
		}
	}

	for i, e := range s.Episodes {
		if e.ID == "" {
			return fmt.Errorf("episodes[%d]: id is required", i)
		}
	}

	for i, ev := range s.Events {
		if ev.ID == "" {
			return fmt.Errorf("events[%d]: id is required", i)
		}
	}

	if len(s.Events) > 0 && s.Event == nil {
		return fmt.Errorf("events given without an event block")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPersonTime, AssertCanonical:
		// person_time with an empty id checks the whole table;
		// canonical takes no parameters.
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertStateAt:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for state_at", index)
		}
	case AssertMonotone, AssertNoReversion:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for %s", index, a.Type)
		}
	case AssertFlagCount:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for flag_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for flag_count", index)
		}
	case AssertColumnTotal:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for column_total", index)
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative for column_total", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// spec converts the block to an exposure stage spec. Enum spellings are
// parsed here; everything else is validated by expose.New.
func (b *ExposureBlock) spec() (expose.Spec, error) {
	spec := expose.Spec{
		Generate:        b.Generate,
		ReferenceLabel:  b.ReferenceLabel,
		CombineColumn:   b.CombineColumn,
		DurationCuts:    b.DurationCuts,
		RecencyCuts:     b.RecencyCuts,
		DoseCuts:        b.DoseCuts,
		ByType:          b.ByType,
		Grace:           b.Grace,
		Merge:           b.Merge,
		Lag:             b.Lag,
		Washout:         b.Washout,
		Fillgaps:        b.Fillgaps,
		Carryforward:    b.Carryforward,
		PointTime:       b.PointTime,
		Switching:       b.Switching,
		SwitchingDetail: b.SwitchingDetail,
		StateTime:       b.StateTime,
	}

	if b.Reference != nil {
		v, err := stateValue(b.Reference)
		if err != nil {
			return spec, fmt.Errorf("exposure.reference: %w", err)
		}
		spec.Reference = v
	}
	for i, raw := range b.Priority {
		v, err := stateValue(raw)
		if err != nil {
			return spec, fmt.Errorf("exposure.priority[%d]: %w", i, err)
		}
		spec.PriorityOrder = append(spec.PriorityOrder, v)
	}

	var err error
	if spec.Overlap, err = expose.ParseOverlapPolicy(b.Overlap); err != nil {
		return spec, fmt.Errorf("exposure.overlap: %w", err)
	}
	if spec.Projection, err = expose.ParseProjection(b.Projection); err != nil {
		return spec, fmt.Errorf("exposure.projection: %w", err)
	}
	if spec.Unit, err = timeline.ParseUnit(b.Unit); err != nil {
		return spec, fmt.Errorf("exposure.unit: %w", err)
	}
	if spec.ExpandUnit, err = timeline.ParseCalendarUnit(b.Expand); err != nil {
		return spec, fmt.Errorf("exposure.expand: %w", err)
	}

	if len(b.GraceByValue) > 0 {
		spec.GraceByValue = make(map[timeline.Value]int64, len(b.GraceByValue))
		for label, days := range b.GraceByValue {
			spec.GraceByValue[labelValue(label)] = days
		}
	}
	if b.Window != nil {
		spec.Window = &expose.DurationWindow{Min: b.Window.Min, Max: b.Window.Max}
	}

	return spec, nil
}

// spec converts the block to an event stage spec.
func (b *EventBlock) spec() (event.Spec, error) {
	spec := event.Spec{
		Generate:       b.Generate,
		Continuous:     b.Continuous,
		CompetingCodes: b.CompetingCodes,
		TimeColumn:     b.TimeColumn,
	}

	var err error
	if spec.Semantics, err = event.ParseSemantics(b.Semantics); err != nil {
		return spec, fmt.Errorf("event.semantics: %w", err)
	}
	if spec.TimeUnit, err = timeline.ParseUnit(b.TimeUnit); err != nil {
		return spec, fmt.Errorf("event.time_unit: %w", err)
	}

	return spec, nil
}

// stateValue converts a YAML-parsed scalar to a state value.
// null maps to the missing state; booleans have no state representation.
func stateValue(raw any) (timeline.Value, error) {
	switch v := raw.(type) {
	case nil:
		return timeline.Missing{}, nil
	case int:
		return timeline.Int(int64(v)), nil
	case int64:
		return timeline.Int(v), nil
	case uint64:
		return timeline.Int(int64(v)), nil
	case float64:
		return timeline.Float(v), nil
	case string:
		return timeline.String(v), nil
	default:
		return nil, fmt.Errorf("unsupported state type %T", raw)
	}
}

// labelValue parses a map key the way protocol state labels are parsed:
// integers and floats become numeric states, everything else a string.
func labelValue(s string) timeline.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return timeline.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return timeline.Float(f)
	}
	return timeline.String(s)
}
