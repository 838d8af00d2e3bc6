package timeline

import (
	"fmt"
	"time"
)

// Unit is a duration unit for accumulator columns. Divisors follow the
// 365.25-day year convention used throughout pharmacoepidemiology, so a
// month is 30.4375 days and a quarter 91.3125.
type Unit int

const (
	UnitDays Unit = iota
	UnitWeeks
	UnitMonths
	UnitQuarters
	UnitYears
)

// Divisor returns the day count of one unit.
func (u Unit) Divisor() float64 {
	switch u {
	case UnitWeeks:
		return 7
	case UnitMonths:
		return 365.25 / 12
	case UnitQuarters:
		return 365.25 / 4
	case UnitYears:
		return 365.25
	default:
		return 1
	}
}

// String implements fmt.Stringer.
func (u Unit) String() string {
	switch u {
	case UnitDays:
		return "days"
	case UnitWeeks:
		return "weeks"
	case UnitMonths:
		return "months"
	case UnitQuarters:
		return "quarters"
	case UnitYears:
		return "years"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// ParseUnit converts external text to a Unit.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "days", "day", "":
		return UnitDays, nil
	case "weeks", "week":
		return UnitWeeks, nil
	case "months", "month":
		return UnitMonths, nil
	case "quarters", "quarter":
		return UnitQuarters, nil
	case "years", "year":
		return UnitYears, nil
	default:
		return UnitDays, fmt.Errorf("unknown time unit %q", s)
	}
}

// CalendarUnit selects calendar-aligned output granularity: rows are cut at
// unit boundaries without altering resolved states. NoExpand leaves rows at
// their natural change points.
type CalendarUnit int

const (
	NoExpand CalendarUnit = iota
	ExpandWeeks
	ExpandMonths
	ExpandQuarters
	ExpandYears
)

// String implements fmt.Stringer.
func (cu CalendarUnit) String() string {
	switch cu {
	case NoExpand:
		return "none"
	case ExpandWeeks:
		return "weeks"
	case ExpandMonths:
		return "months"
	case ExpandQuarters:
		return "quarters"
	case ExpandYears:
		return "years"
	default:
		return fmt.Sprintf("calendarunit(%d)", int(cu))
	}
}

// ParseCalendarUnit converts external text to a CalendarUnit.
func ParseCalendarUnit(s string) (CalendarUnit, error) {
	switch s {
	case "", "none":
		return NoExpand, nil
	case "weeks", "week":
		return ExpandWeeks, nil
	case "months", "month":
		return ExpandMonths, nil
	case "quarters", "quarter":
		return ExpandQuarters, nil
	case "years", "year":
		return ExpandYears, nil
	default:
		return NoExpand, fmt.Errorf("unknown calendar unit %q", s)
	}
}

const secondsPerDay = 86400

// DateOf converts a day number to its UTC calendar date.
// Day 0 is 1970-01-01; negative days reach back before the epoch.
func DateOf(day int64) time.Time {
	return time.Unix(day*secondsPerDay, 0).UTC()
}

// DayOf converts a UTC calendar date to its day number, truncating any
// time-of-day component.
func DayOf(t time.Time) int64 {
	u := t.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return d.Unix() / secondsPerDay
}

// Day builds a day number from a calendar date. Months and days are
// 1-based, as in time.Date.
func Day(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

// NextBoundary returns the first calendar boundary strictly after day:
// the next ISO Monday, first of month, first of quarter, or January 1st.
// NoExpand has no boundaries and returns day unchanged.
func (cu CalendarUnit) NextBoundary(day int64) int64 {
	if cu == NoExpand {
		return day
	}
	t := DateOf(day)
	var next time.Time
	switch cu {
	case ExpandWeeks:
		offset := (int(time.Monday) - int(t.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		next = t.AddDate(0, 0, offset)
	case ExpandMonths:
		next = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	case ExpandQuarters:
		qm := time.Month(((int(t.Month())-1)/3)*3 + 1)
		next = time.Date(t.Year(), qm, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 3, 0)
	case ExpandYears:
		next = time.Date(t.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return DayOf(next)
}
