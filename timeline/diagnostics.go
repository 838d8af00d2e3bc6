package timeline

import (
	"fmt"
	"slices"
	"strings"
)

// ViolationKind categorizes a structural defect found by diagnostics.
type ViolationKind string

const (
	// ViolationOrder indicates rows out of (id, start) sort order.
	ViolationOrder ViolationKind = "ORDER"

	// ViolationOverlap indicates two rows of one subject sharing person-time.
	ViolationOverlap ViolationKind = "OVERLAP"

	// ViolationGap indicates uncovered person-time between adjacent rows.
	ViolationGap ViolationKind = "GAP"

	// ViolationNegative indicates a row with stop < start.
	ViolationNegative ViolationKind = "NEGATIVE_DURATION"

	// ViolationMonotone indicates a cumulative column that decreased.
	ViolationMonotone ViolationKind = "MONOTONE"

	// ViolationTouch indicates adjacent rows sharing exactly one day,
	// typically closed-interval source data whose stops were never shifted.
	ViolationTouch ViolationKind = "TOUCH"

	// ViolationCross indicates adjacent rows sharing more than one day.
	ViolationCross ViolationKind = "CROSS"
)

// Violation is one structural defect, located by row index in the checked
// table.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	ID      string        `json:"id"`
	Row     int           `json:"row"`
	Message string        `json:"message"`
}

// Error renders the violation as a one-line diagnostic.
func (v Violation) String() string {
	return fmt.Sprintf("%s id=%s row=%d: %s", v.Kind, v.ID, v.Row, v.Message)
}

// CheckCanonical verifies the table's structural invariants: rows sorted by
// (id, start), stop >= start everywhere, and per subject neither overlaps
// nor gaps (each row's stop equals the next row's start). Returns every
// violation found; an empty slice means the table is canonical.
func CheckCanonical(t *Table) []Violation {
	var out []Violation
	for i, r := range t.Rows {
		if r.Stop < r.Start {
			out = append(out, Violation{
				Kind:    ViolationNegative,
				ID:      r.ID,
				Row:     i,
				Message: fmt.Sprintf("stop %d before start %d", r.Stop, r.Start),
			})
		}
		if i == 0 {
			continue
		}
		prev := t.Rows[i-1]
		if c := strings.Compare(prev.ID, r.ID); c > 0 || (c == 0 && prev.Start > r.Start) {
			out = append(out, Violation{
				Kind:    ViolationOrder,
				ID:      r.ID,
				Row:     i,
				Message: "rows not sorted by (id, start)",
			})
			continue
		}
		if prev.ID != r.ID {
			continue
		}
		switch {
		case r.Start < prev.Stop:
			out = append(out, Violation{
				Kind:    ViolationOverlap,
				ID:      r.ID,
				Row:     i,
				Message: fmt.Sprintf("row starts at %d before previous stop %d", r.Start, prev.Stop),
			})
		case r.Start > prev.Stop:
			out = append(out, Violation{
				Kind:    ViolationGap,
				ID:      r.ID,
				Row:     i,
				Message: fmt.Sprintf("%d uncovered days between %d and %d", r.Start-prev.Stop, prev.Stop, r.Start),
			})
		}
	}
	return out
}

// BoundaryTouches flags adjacent same-subject rows that share days: exactly
// one shared day is a touch, more is a crossing. Cosmetic companion to
// CheckCanonical for callers tolerating non-canonical inputs; the sweep
// resolves shared days deterministically either way.
func BoundaryTouches(t *Table) []Violation {
	var out []Violation
	for i := 1; i < len(t.Rows); i++ {
		prev, r := t.Rows[i-1], t.Rows[i]
		if prev.ID != r.ID || r.Start >= prev.Stop {
			continue
		}
		v := Violation{Kind: ViolationCross, ID: r.ID, Row: i,
			Message: fmt.Sprintf("%d days shared with previous row", prev.Stop-r.Start)}
		if prev.Stop-r.Start == 1 {
			v.Kind = ViolationTouch
			v.Message = fmt.Sprintf("boundary day %d shared with previous row", r.Start)
		}
		out = append(out, v)
	}
	return out
}

// MonotoneViolations checks that a numeric column never decreases along a
// subject's sorted rows. Missing cells are skipped (they neither violate nor
// reset the running maximum). Returns an error for an unknown column.
func MonotoneViolations(t *Table, column string) ([]Violation, error) {
	col, ok := t.ColumnIndex(column)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	var out []Violation
	var last float64
	haveLast := false
	lastID := ""
	for i, r := range t.Rows {
		if r.ID != lastID {
			lastID = r.ID
			haveLast = false
		}
		if col >= len(r.Values) {
			continue
		}
		f, num := AsFloat(r.Values[col])
		if !num {
			continue
		}
		if haveLast && f < last {
			out = append(out, Violation{
				Kind:    ViolationMonotone,
				ID:      r.ID,
				Row:     i,
				Message: fmt.Sprintf("%s decreased from %g to %g", column, last, f),
			})
		}
		last, haveLast = f, true
	}
	return out, nil
}

// CoverageRow summarizes one subject's person-time accounting: covered is
// the table's total, expected is exit - entry from the subject's window.
type CoverageRow struct {
	ID       string `json:"id"`
	Expected int64  `json:"expected"`
	Covered  int64  `json:"covered"`
	Rows     int    `json:"rows"`
	Complete bool   `json:"complete"`
}

// Coverage reconciles a table against study windows. Every window id
// appears in the output (with zero covered time if the table has no rows
// for it), as does every table id without a window (expected zero, never
// complete). Output is sorted by id.
func Coverage(t *Table, windows []StudyWindow) []CoverageRow {
	covered := make(map[string]int64)
	rows := make(map[string]int)
	for _, r := range t.Rows {
		covered[r.ID] += r.Duration()
		rows[r.ID]++
	}

	byID := make(map[string]CoverageRow)
	for _, w := range windows {
		byID[w.ID] = CoverageRow{
			ID:       w.ID,
			Expected: w.Exit - w.Entry,
			Covered:  covered[w.ID],
			Rows:     rows[w.ID],
			Complete: covered[w.ID] == w.Exit-w.Entry,
		}
	}
	for id := range covered {
		if _, ok := byID[id]; !ok {
			byID[id] = CoverageRow{ID: id, Covered: covered[id], Rows: rows[id]}
		}
	}

	out := make([]CoverageRow, 0, len(byID))
	for _, row := range byID {
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b CoverageRow) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// OverlapRow reports one pair of raw episodes sharing at least one day.
type OverlapRow struct {
	ID     string `json:"id"`
	AStart int64  `json:"a_start"`
	AStop  int64  `json:"a_stop"`
	BStart int64  `json:"b_start"`
	BStop  int64  `json:"b_stop"`
}

// EpisodeOverlaps finds raw input episodes of the same subject that share
// days. Overlap here is on closed day ranges: [0,5] and [5,9] overlap on
// day 5. Informational only; producers resolve overlaps rather than reject
// them.
func EpisodeOverlaps(episodes []Episode) []OverlapRow {
	sorted := slices.Clone(episodes)
	slices.SortStableFunc(sorted, compareEpisodes)

	var out []OverlapRow
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted) && sorted[j].ID == sorted[i].ID && sorted[j].Start <= sorted[i].Stop; j++ {
			out = append(out, OverlapRow{
				ID:     sorted[i].ID,
				AStart: sorted[i].Start,
				AStop:  sorted[i].Stop,
				BStart: sorted[j].Start,
				BStop:  sorted[j].Stop,
			})
		}
	}
	return out
}

// GapRow reports one uncovered span of a subject's window, in boundary
// coordinates (the span [Start, Stop) has Days = Stop - Start uncovered
// days).
type GapRow struct {
	ID    string `json:"id"`
	Start int64  `json:"start"`
	Stop  int64  `json:"stop"`
	Days  int64  `json:"days"`
}

// EpisodeGaps finds spans of each subject's window not covered by any raw
// episode. A subject with no episodes yields one gap covering the whole
// window. Informational: producers fill these spans with the reference
// state.
func EpisodeGaps(episodes []Episode, windows []StudyWindow) []GapRow {
	byID := make(map[string][]Episode)
	for _, ep := range episodes {
		byID[ep.ID] = append(byID[ep.ID], ep)
	}

	sortedWindows := slices.Clone(windows)
	slices.SortFunc(sortedWindows, func(a, b StudyWindow) int {
		return strings.Compare(a.ID, b.ID)
	})

	var out []GapRow
	for _, w := range sortedWindows {
		eps := slices.Clone(byID[w.ID])
		slices.SortStableFunc(eps, compareEpisodes)

		cursor := w.Entry
		for _, ep := range eps {
			lo, hi := ep.Start, ep.Stop+1
			if lo < w.Entry {
				lo = w.Entry
			}
			if hi > w.Exit {
				hi = w.Exit
			}
			if lo >= hi {
				continue
			}
			if lo > cursor {
				out = append(out, GapRow{ID: w.ID, Start: cursor, Stop: lo, Days: lo - cursor})
			}
			if hi > cursor {
				cursor = hi
			}
		}
		if cursor < w.Exit {
			out = append(out, GapRow{ID: w.ID, Start: cursor, Stop: w.Exit, Days: w.Exit - cursor})
		}
	}
	return out
}

func compareEpisodes(a, b Episode) int {
	if c := strings.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	if a.Start != b.Start {
		if a.Start < b.Start {
			return -1
		}
		return 1
	}
	if a.Stop != b.Stop {
		if a.Stop < b.Stop {
			return -1
		}
		return 1
	}
	return Compare(a.Value, b.Value)
}
