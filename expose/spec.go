package expose

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/persontime/timeline"
)

// OverlapPolicy selects how concurrently active episodes resolve to one
// visible state.
type OverlapPolicy int

const (
	// Layer gives the episode with the latest effective start precedence.
	// Ties break by latest effective stop, then by value order, so the
	// winner never depends on input ordering.
	Layer OverlapPolicy = iota

	// Priority ranks episode values by an explicit order; the best-ranked
	// active value wins. Unlisted values rank below all listed ones.
	Priority

	// Split emits the combination of all concurrently active values as a
	// distinct composite state (no collapsing).
	Split

	// Combine resolves like Layer but adds a separate co-occurrence
	// indicator column marking spans where two or more distinct values
	// were simultaneously active.
	Combine
)

// String implements fmt.Stringer.
func (p OverlapPolicy) String() string {
	switch p {
	case Layer:
		return "layer"
	case Priority:
		return "priority"
	case Split:
		return "split"
	case Combine:
		return "combine"
	default:
		return fmt.Sprintf("overlap(%d)", int(p))
	}
}

// ParseOverlapPolicy converts external text to an OverlapPolicy.
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch s {
	case "", "layer":
		return Layer, nil
	case "priority":
		return Priority, nil
	case "split":
		return Split, nil
	case "combine":
		return Combine, nil
	default:
		return Layer, fmt.Errorf("unknown overlap policy %q", s)
	}
}

// Projection re-encodes the resolved state sequence into an analysis
// variable. Projections are mutually exclusive by construction; the result
// replaces the state column's content.
type Projection int

const (
	// NoProjection leaves the resolved state untouched.
	NoProjection Projection = iota

	// EverTreated encodes 0 before the first exposure and 1 from its start
	// onward; never reverts.
	EverTreated

	// CurrentFormer encodes 0 never exposed, 1 currently exposed, 2
	// formerly exposed; transitions only forward.
	CurrentFormer

	// Duration buckets cumulative exposed time against cutpoints.
	Duration

	// Continuous carries cumulative exposed time as a real-valued
	// accumulator in the configured unit.
	Continuous

	// Recency buckets elapsed time since the most recent exposure ended.
	Recency

	// Dose accumulates episode dose values over exposed person-time,
	// optionally bucketed at cutpoints.
	Dose
)

// String implements fmt.Stringer.
func (p Projection) String() string {
	switch p {
	case NoProjection:
		return "none"
	case EverTreated:
		return "evertreated"
	case CurrentFormer:
		return "currentformer"
	case Duration:
		return "duration"
	case Continuous:
		return "continuous"
	case Recency:
		return "recency"
	case Dose:
		return "dose"
	default:
		return fmt.Sprintf("projection(%d)", int(p))
	}
}

// ParseProjection converts external text to a Projection.
func ParseProjection(s string) (Projection, error) {
	switch s {
	case "", "none":
		return NoProjection, nil
	case "evertreated":
		return EverTreated, nil
	case "currentformer":
		return CurrentFormer, nil
	case "duration":
		return Duration, nil
	case "continuous":
		return Continuous, nil
	case "recency":
		return Recency, nil
	case "dose":
		return Dose, nil
	default:
		return NoProjection, fmt.Errorf("unknown projection %q", s)
	}
}

// DurationWindow filters adjusted episodes by day length before
// partitioning: episodes shorter than Min or (when Max > 0) longer than Max
// days are dropped. Used for acute-exposure designs.
type DurationWindow struct {
	Min int64
	Max int64 // 0 means unbounded
}

// Default column names.
const (
	DefaultGenerate      = "exposure"
	DefaultCombineColumn = "co_exposure"

	colSwitched      = "switched"
	colSwitchPattern = "switch_pattern"
	colStateDays     = "state_days"
)

// Spec is the immutable configuration of one partitioning run. The zero
// value of every field is the neutral default; only Reference is required.
// Spec is threaded through every call rather than held in process state, so
// concurrent runs with different options never interfere.
type Spec struct {
	// Generate names the output state column. Default "exposure".
	Generate string

	// Reference is the state assigned to uncovered person-time. Required.
	Reference timeline.Value

	// ReferenceLabel, when set, substitutes a display label for the
	// reference state in output rows. Comparisons treat the label and the
	// raw reference value as the same state.
	ReferenceLabel string

	// Overlap selects the concurrent-episode resolution policy.
	Overlap OverlapPolicy

	// PriorityOrder ranks episode values for the Priority policy, strongest
	// first. Required with Priority, rejected otherwise.
	PriorityOrder []timeline.Value

	// CombineColumn names the co-occurrence indicator for the Combine
	// policy. Default "co_exposure".
	CombineColumn string

	// Projection selects the derived encoding of the state column.
	Projection Projection

	// Unit is the time unit for Duration and Continuous accumulators.
	// The zero value is days.
	Unit timeline.Unit

	// DurationCuts, RecencyCuts, and DoseCuts are strictly ascending
	// positive cutpoints for their projections. DurationCuts and
	// RecencyCuts are required by theirs; DoseCuts is optional (absent, the
	// dose column stays continuous). Recency cuts are in years.
	DurationCuts []float64
	RecencyCuts  []float64
	DoseCuts     []float64

	// ByType decomposes the active projection into one column per distinct
	// raw episode value, keeping the state column raw. Requires an active
	// projection.
	ByType bool

	// Grace absorbs interruptions up to this many days between same-state
	// spans. GraceByValue overrides the threshold for individual states.
	Grace        int64
	GraceByValue map[timeline.Value]int64

	// Merge consolidates adjacent same-state output intervals separated by
	// a boundary gap of up to this many days. Independent of grace.
	Merge int64

	// Lag delays each episode's causal activity: effective start is
	// start + Lag days.
	Lag int64

	// Washout extends each episode's effect: effective stop is
	// stop + Washout days.
	Washout int64

	// Fillgaps extends a subject's terminal resolved state this many days
	// past its last stop, clipped to exit.
	Fillgaps int64

	// Carryforward extends the last observed state across any following
	// uncovered gap of up to this many days, regardless of what follows.
	Carryforward int64

	// PointTime treats episodes as single-day events: stop := start.
	PointTime bool

	// Window drops adjusted episodes outside a day-length range.
	Window *DurationWindow

	// Pattern tracking columns.
	Switching       bool // "switched": 0/1 per subject, state ever changed
	SwitchingDetail bool // "switch_pattern": distinct states in order seen
	StateTime       bool // "state_days": days since current run began

	// ExpandUnit cuts output rows at calendar boundaries for aligned
	// reporting granularity. States are unaffected.
	ExpandUnit timeline.CalendarUnit
}

func (s Spec) generate() string {
	if s.Generate == "" {
		return DefaultGenerate
	}
	return s.Generate
}

func (s Spec) combineColumn() string {
	if s.CombineColumn == "" {
		return DefaultCombineColumn
	}
	return s.CombineColumn
}

// graceFor returns the grace threshold for a state. When two map keys
// compare equal (Int vs Float of the same number) the canonically least
// key wins, keeping the result independent of map iteration order.
func (s Spec) graceFor(state timeline.Value) int64 {
	var best timeline.Value
	found := false
	for v := range s.GraceByValue {
		if timeline.Equal(v, state) && (!found || timeline.Compare(v, best) < 0) {
			best, found = v, true
		}
	}
	if found {
		return s.GraceByValue[best]
	}
	return s.Grace
}

// referenceState is the value written for uncovered person-time: the display
// label when configured, the raw reference otherwise.
func (s Spec) referenceState() timeline.Value {
	if s.ReferenceLabel != "" {
		return timeline.String(s.ReferenceLabel)
	}
	return s.Reference
}

// isReference reports whether v is the reference state under either form.
func (s Spec) isReference(v timeline.Value) bool {
	if timeline.Equal(v, s.Reference) {
		return true
	}
	return s.ReferenceLabel != "" && timeline.Equal(v, timeline.String(s.ReferenceLabel))
}

// byTypePrefix returns the column stub for per-value projection columns.
func (s Spec) byTypePrefix() string {
	switch s.Projection {
	case EverTreated:
		return "ever_"
	case CurrentFormer:
		return "cf_"
	case Duration:
		return "dur_"
	case Continuous:
		return "cum_"
	case Recency:
		return "rec_"
	case Dose:
		return "dose_"
	default:
		return "by_"
	}
}

// columns returns the output column set for this spec given the distinct
// raw values observed in the input (used only when ByType is active).
// Order: state, co-occurrence indicator, per-value columns, pattern columns.
func (s Spec) columns(byValues []timeline.Value) []string {
	cols := []string{s.generate()}
	if s.Overlap == Combine {
		cols = append(cols, s.combineColumn())
	}
	if s.ByType {
		for _, v := range byValues {
			cols = append(cols, s.byTypePrefix()+timeline.ColumnSuffix(v))
		}
	}
	if s.Switching {
		cols = append(cols, colSwitched)
	}
	if s.SwitchingDetail {
		cols = append(cols, colSwitchPattern)
	}
	if s.StateTime {
		cols = append(cols, colStateDays)
	}
	return cols
}

// canonical renders the spec deterministically for fingerprinting: one
// key=value line per field in fixed order, values through the canonical
// cell renderer.
func (s Spec) canonical() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "engine=expose\n")
	fmt.Fprintf(&b, "generate=%s\n", s.generate())
	fmt.Fprintf(&b, "reference=%s\n", timeline.Render(s.Reference))
	if s.ReferenceLabel != "" {
		fmt.Fprintf(&b, "reference_label=%s\n", s.ReferenceLabel)
	}
	fmt.Fprintf(&b, "overlap=%s\n", s.Overlap)
	for _, v := range s.PriorityOrder {
		fmt.Fprintf(&b, "priority=%s\n", timeline.Render(v))
	}
	if s.Overlap == Combine {
		fmt.Fprintf(&b, "combine_column=%s\n", s.combineColumn())
	}
	fmt.Fprintf(&b, "projection=%s\n", s.Projection)
	fmt.Fprintf(&b, "unit=%s\n", s.Unit)
	writeCuts(&b, "duration_cuts", s.DurationCuts)
	writeCuts(&b, "recency_cuts", s.RecencyCuts)
	writeCuts(&b, "dose_cuts", s.DoseCuts)
	fmt.Fprintf(&b, "bytype=%t\n", s.ByType)
	fmt.Fprintf(&b, "grace=%d\n", s.Grace)
	for _, v := range sortedGraceKeys(s.GraceByValue) {
		fmt.Fprintf(&b, "grace_by=%s:%d\n", timeline.Render(v), s.GraceByValue[v])
	}
	fmt.Fprintf(&b, "merge=%d\n", s.Merge)
	fmt.Fprintf(&b, "lag=%d\n", s.Lag)
	fmt.Fprintf(&b, "washout=%d\n", s.Washout)
	fmt.Fprintf(&b, "fillgaps=%d\n", s.Fillgaps)
	fmt.Fprintf(&b, "carryforward=%d\n", s.Carryforward)
	fmt.Fprintf(&b, "pointtime=%t\n", s.PointTime)
	if s.Window != nil {
		fmt.Fprintf(&b, "window=%d:%d\n", s.Window.Min, s.Window.Max)
	}
	fmt.Fprintf(&b, "switching=%t\n", s.Switching)
	fmt.Fprintf(&b, "switchingdetail=%t\n", s.SwitchingDetail)
	fmt.Fprintf(&b, "statetime=%t\n", s.StateTime)
	fmt.Fprintf(&b, "expand=%s\n", s.ExpandUnit)
	return b.Bytes()
}

func writeCuts(b *bytes.Buffer, key string, cuts []float64) {
	for _, c := range cuts {
		fmt.Fprintf(b, "%s=%s\n", key, strconv.FormatFloat(c, 'g', -1, 64))
	}
}

// Fingerprint returns the domain-separated content hash of the spec.
// Recorded in RunInfo so a stored table can be traced back to the exact
// configuration that produced it.
func (s Spec) Fingerprint() string {
	return timeline.Fingerprint(timeline.DomainSpec, s.canonical())
}

// sortedGraceKeys orders per-value grace keys canonically so iteration is
// deterministic despite the map.
func sortedGraceKeys(m map[timeline.Value]int64) []timeline.Value {
	keys := make([]timeline.Value, 0, len(m))
	for v := range m {
		keys = append(keys, v)
	}
	slices.SortFunc(keys, timeline.Compare)
	return keys
}
