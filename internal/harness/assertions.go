package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/persontime/timeline"
)

// AssertionError is returned when an assertion fails.
// It includes the expected and observed outcomes to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s",
		e.Type, e.Expected, e.Actual)
}

// assertPersonTime checks total follow-up time, for one subject when id is
// set or over the whole table otherwise.
func assertPersonTime(t *timeline.Table, a Assertion) error {
	if a.ID == "" {
		got := t.PersonTime()
		if float64(got) != a.Total {
			return &AssertionError{
				Type:     AssertPersonTime,
				Expected: fmt.Sprintf("%g days of person-time in total", a.Total),
				Actual:   fmt.Sprintf("%d days", got),
			}
		}
		return nil
	}

	got, ok := t.PersonTimeByID()[a.ID]
	if !ok {
		return &AssertionError{
			Type:     AssertPersonTime,
			Expected: fmt.Sprintf("%g days of person-time for id %s", a.Total, a.ID),
			Actual:   "subject not present in table",
		}
	}
	if float64(got) != a.Total {
		return &AssertionError{
			Type:     AssertPersonTime,
			Expected: fmt.Sprintf("%g days of person-time for id %s", a.Total, a.ID),
			Actual:   fmt.Sprintf("%d days", got),
		}
	}
	return nil
}

// assertRowCount checks the number of rows in the table.
func assertRowCount(t *timeline.Table, a Assertion) error {
	if int64(len(t.Rows)) != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows", a.Count),
			Actual:   fmt.Sprintf("%d rows", len(t.Rows)),
		}
	}
	return nil
}

// assertStateAt checks the value carried by the interval covering the given
// day. Intervals are half-open, so a row matches when start <= day < stop.
func assertStateAt(t *timeline.Table, a Assertion) error {
	col := 0
	if a.Column != "" {
		c, ok := t.ColumnIndex(a.Column)
		if !ok {
			return fmt.Errorf("state_at assertion: unknown column %q", a.Column)
		}
		col = c
	}
	want, err := stateValue(a.Value)
	if err != nil {
		return fmt.Errorf("state_at assertion: %w", err)
	}
	expected := fmt.Sprintf("value %s at day %d for id %s", timeline.Render(want), a.Day, a.ID)

	for _, r := range t.Rows {
		if r.ID != a.ID || a.Day < r.Start || a.Day >= r.Stop {
			continue
		}
		if col >= len(r.Values) {
			continue
		}
		if !timeline.Equal(r.Values[col], want) {
			return &AssertionError{
				Type:     AssertStateAt,
				Expected: expected,
				Actual:   fmt.Sprintf("value %s", timeline.Render(r.Values[col])),
			}
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertStateAt,
		Expected: expected,
		Actual:   fmt.Sprintf("no interval covers day %d for id %s", a.Day, a.ID),
	}
}

// assertCanonical checks the table's structural invariants.
func assertCanonical(t *timeline.Table) error {
	violations := timeline.CheckCanonical(t)
	if len(violations) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertCanonical,
		Expected: "table passes canonical interval checks",
		Actual:   fmt.Sprintf("%d violations: %s", len(violations), joinViolations(violations)),
	}
}

// assertMonotone checks that a numeric column never decreases within a
// subject.
func assertMonotone(t *timeline.Table, a Assertion) error {
	violations, err := timeline.MonotoneViolations(t, a.Column)
	if err != nil {
		return fmt.Errorf("monotone assertion: %w", err)
	}
	if len(violations) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertMonotone,
		Expected: fmt.Sprintf("column %s never decreases within a subject", a.Column),
		Actual:   fmt.Sprintf("%d violations: %s", len(violations), joinViolations(violations)),
	}
}

// assertNoReversion checks that once a subject's column moves away from a
// state, that state never recurs. Missing values are not states and are
// skipped. This is the defining property of the ever-treated and
// current-former projections.
func assertNoReversion(t *timeline.Table, a Assertion) error {
	col, ok := t.ColumnIndex(a.Column)
	if !ok {
		return fmt.Errorf("no_reversion assertion: unknown column %q", a.Column)
	}

	var current timeline.Value
	var left []timeline.Value
	lastID := ""
	for i, r := range t.Rows {
		if r.ID != lastID {
			lastID = r.ID
			current = nil
			left = nil
		}
		if col >= len(r.Values) {
			continue
		}
		v := r.Values[col]
		if _, missing := v.(timeline.Missing); missing || v == nil {
			continue
		}
		if current != nil && !timeline.Equal(v, current) {
			left = append(left, current)
			for _, old := range left {
				if timeline.Equal(v, old) {
					return &AssertionError{
						Type:     AssertNoReversion,
						Expected: fmt.Sprintf("column %s never returns to a state it left", a.Column),
						Actual:   fmt.Sprintf("id %s row %d: state %s recurs", r.ID, i, timeline.Render(v)),
					}
				}
			}
		}
		current = v
	}
	return nil
}

// assertFlagCount counts rows where the column is numeric and non-zero.
func assertFlagCount(t *timeline.Table, a Assertion) error {
	col, ok := t.ColumnIndex(a.Column)
	if !ok {
		return fmt.Errorf("flag_count assertion: unknown column %q", a.Column)
	}

	var count int64
	for _, r := range t.Rows {
		if col >= len(r.Values) {
			continue
		}
		if f, num := timeline.AsFloat(r.Values[col]); num && f != 0 {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertFlagCount,
			Expected: fmt.Sprintf("%d rows with non-zero %s", a.Count, a.Column),
			Actual:   fmt.Sprintf("%d rows", count),
		}
	}
	return nil
}

// assertColumnTotal sums a numeric column and compares against the expected
// total. Missing values contribute nothing.
func assertColumnTotal(t *timeline.Table, a Assertion) error {
	col, ok := t.ColumnIndex(a.Column)
	if !ok {
		return fmt.Errorf("column_total assertion: unknown column %q", a.Column)
	}

	var sum float64
	for _, r := range t.Rows {
		if col >= len(r.Values) {
			continue
		}
		if f, num := timeline.AsFloat(r.Values[col]); num {
			sum += f
		}
	}
	if math.Abs(sum-a.Total) > a.Tolerance {
		return &AssertionError{
			Type:     AssertColumnTotal,
			Expected: fmt.Sprintf("%s sums to %g within %g", a.Column, a.Total, a.Tolerance),
			Actual:   fmt.Sprintf("sum %g", sum),
		}
	}
	return nil
}

// joinViolations renders violations as one semicolon-separated line.
func joinViolations(violations []timeline.Violation) string {
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return strings.Join(lines, "; ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPersonTime:
			err = assertPersonTime(result.Table, assertion)
		case AssertRowCount:
			err = assertRowCount(result.Table, assertion)
		case AssertStateAt:
			err = assertStateAt(result.Table, assertion)
		case AssertCanonical:
			err = assertCanonical(result.Table)
		case AssertMonotone:
			err = assertMonotone(result.Table, assertion)
		case AssertNoReversion:
			err = assertNoReversion(result.Table, assertion)
		case AssertFlagCount:
			err = assertFlagCount(result.Table, assertion)
		case AssertColumnTotal:
			err = assertColumnTotal(result.Table, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
