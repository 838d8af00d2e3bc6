package timeline

import (
	"slices"
	"strings"
)

// StudyWindow defines one subject's observation bounds.
// Entry and Exit are day boundaries: person-time at risk is Exit - Entry.
// Caller-supplied and read-only; producers never mutate windows.
type StudyWindow struct {
	ID    string `json:"id"`
	Entry int64  `json:"entry"`
	Exit  int64  `json:"exit"` // invariant: Entry <= Exit
}

// Episode is one raw exposure record: a closed day range [Start, Stop]
// carrying a value (categorical code or dose amount). Multiple episodes per
// subject may overlap; overlap resolution is the producer's job. Immutable
// input.
//
// Priority is an optional explicit rank for priority overlap resolution,
// 1 strongest. Zero means unranked: the record's rank comes from its value's
// position in the configured order instead.
type Episode struct {
	ID       string `json:"id"`
	Start    int64  `json:"start"`
	Stop     int64  `json:"stop"` // invariant: Start <= Stop
	Value    Value  `json:"value"`
	Priority int64  `json:"priority,omitempty"`
}

// Interval is one output row: the half-open day span [Start, Stop) with
// value columns aligned to the owning Table's Columns slice.
// Start == Stop is a degenerate single-instant row (zero person-time),
// produced only by coverage intersections that touch at exactly one boundary.
type Interval struct {
	ID     string
	Start  int64
	Stop   int64
	Values []Value
}

// Duration returns the row's person-time contribution in days.
func (iv Interval) Duration() int64 {
	return iv.Stop - iv.Start
}

// Table is the sole output shape of every producer: named value columns plus
// rows sorted by (ID, Start). Producers allocate fresh tables and never alias
// input storage, so tables compose freely.
type Table struct {
	Columns []string
	Rows    []Interval
}

// Reserved structural column names. Value columns may not use them.
const (
	ColID    = "id"
	ColStart = "start"
	ColStop  = "stop"
)

// ReservedColumn reports whether name collides with a structural column.
func ReservedColumn(name string) bool {
	return name == ColID || name == ColStart || name == ColStop
}

// NewTable creates an empty table with the given value columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// ColumnIndex returns the position of a value column, or false if absent.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Value returns the named column's value for a row, or Missing if the column
// does not exist or the row is ragged.
func (t *Table) Value(row int, column string) Value {
	i, ok := t.ColumnIndex(column)
	if !ok || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row].Values) {
		return Missing{}
	}
	return t.Rows[row].Values[i]
}

// PersonTime returns total person-time across all rows in days.
func (t *Table) PersonTime() int64 {
	var total int64
	for _, r := range t.Rows {
		total += r.Duration()
	}
	return total
}

// PersonTimeByID returns per-subject person-time in days.
func (t *Table) PersonTimeByID() map[string]int64 {
	out := make(map[string]int64)
	for _, r := range t.Rows {
		out[r.ID] += r.Duration()
	}
	return out
}

// IDs returns the distinct subject ids in ascending order.
func (t *Table) IDs() []string {
	seen := make(map[string]bool, len(t.Rows))
	var ids []string
	for _, r := range t.Rows {
		if !seen[r.ID] {
			seen[r.ID] = true
			ids = append(ids, r.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// Sort orders rows by (ID, Start, Stop). Producers emit sorted tables;
// consumers that rearrange rows restore the order with this.
func (t *Table) Sort() {
	slices.SortStableFunc(t.Rows, func(a, b Interval) int {
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
		return 0
	})
}

// Clone returns a deep copy (rows and value slices are fresh storage).
func (t *Table) Clone() *Table {
	out := &Table{Columns: slices.Clone(t.Columns), Rows: make([]Interval, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = Interval{ID: r.ID, Start: r.Start, Stop: r.Stop, Values: slices.Clone(r.Values)}
	}
	return out
}

// Group returns row index ranges [lo, hi) per subject id, in ascending id
// order. The table must already be sorted.
func (t *Table) Group() []RowGroup {
	var groups []RowGroup
	for i := 0; i < len(t.Rows); {
		j := i
		for j < len(t.Rows) && t.Rows[j].ID == t.Rows[i].ID {
			j++
		}
		groups = append(groups, RowGroup{ID: t.Rows[i].ID, Lo: i, Hi: j})
		i = j
	}
	return groups
}

// RowGroup is a contiguous run of one subject's rows in a sorted table.
type RowGroup struct {
	ID string
	Lo int
	Hi int
}

// Date is an optional day value (sql.Null pattern). The zero Date is "no
// date": a subject with no event date passes through splitters unchanged.
type Date struct {
	Day   int64
	Valid bool
}

// NewDate returns a valid Date for the given day.
func NewDate(day int64) Date {
	return Date{Day: day, Valid: true}
}

// EventRecord is one subject's outcome record for event splitting: a primary
// event date plus optional competing-event dates, any of which may be absent.
type EventRecord struct {
	ID        string
	Date      Date
	Competing []Date
}
