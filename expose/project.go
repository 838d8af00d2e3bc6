package expose

import (
	"github.com/roach88/persontime/timeline"
)

// projectSeries computes the projection's value for every segment, with
// "exposed" defined by match. Used once with match = non-reference for the
// state column, and once per distinct raw value for bytype columns.
//
// Accumulators include the current segment, so each value is the
// end-of-interval reading. They never decrease along a subject's rows.
func (s Spec) projectSeries(segs []segment, match func(segment) bool) []timeline.Value {
	out := make([]timeline.Value, len(segs))

	switch s.Projection {
	case EverTreated:
		ever := false
		for i, seg := range segs {
			if match(seg) {
				ever = true
			}
			out[i] = boolInt(ever)
		}

	case CurrentFormer:
		ever := false
		for i, seg := range segs {
			current := match(seg)
			if current {
				ever = true
			}
			switch {
			case current:
				out[i] = timeline.Int(1)
			case ever:
				out[i] = timeline.Int(2)
			default:
				out[i] = timeline.Int(0)
			}
		}

	case Continuous:
		div := s.Unit.Divisor()
		var cum int64
		for i, seg := range segs {
			if match(seg) {
				cum += seg.days()
			}
			out[i] = timeline.Float(float64(cum) / div)
		}

	case Duration:
		div := s.Unit.Divisor()
		var cum int64
		for i, seg := range segs {
			if match(seg) {
				cum += seg.days()
			}
			out[i] = bucketFrom(float64(cum)/div, s.DurationCuts, 1)
		}

	case Recency:
		// 1 while exposed; afterwards the bucket of elapsed years since the
		// most recent exposure ended, evaluated at the row's start. Zero
		// elapsed time is still former use, so the first gap bucket starts
		// at 2 regardless of the cutpoints. Rows before any exposure keep
		// the reference state.
		var lastEnd int64
		seen := false
		for i, seg := range segs {
			current := match(seg)
			switch {
			case current:
				out[i] = timeline.Int(1)
			case !seen:
				out[i] = s.referenceState()
			default:
				years := float64(seg.lo-lastEnd) / 365.25
				cat := int64(2)
				for _, c := range s.RecencyCuts {
					if years >= c {
						cat++
					}
				}
				out[i] = timeline.Int(cat)
			}
			if current {
				lastEnd = seg.hi
				seen = true
			}
		}

	case Dose:
		var cum float64
		missing := false
		for i, seg := range segs {
			if match(seg) {
				if seg.miss {
					missing = true
				}
				cum += seg.dose
			}
			switch {
			case missing:
				out[i] = timeline.Missing{}
			case len(s.DoseCuts) > 0:
				out[i] = bucketFrom(cum, s.DoseCuts, 1)
			default:
				out[i] = timeline.Float(cum)
			}
		}
	}

	return out
}

// bucketFrom assigns a category from ascending cutpoints: zero stays 0
// (never exposed), values below the first cut get base, and each cut at or
// below the value adds one.
func bucketFrom(v float64, cuts []float64, base int64) timeline.Value {
	if v <= 0 {
		return timeline.Int(0)
	}
	cat := base
	for _, c := range cuts {
		if v >= c {
			cat++
		}
	}
	return timeline.Int(cat)
}

func boolInt(b bool) timeline.Value {
	if b {
		return timeline.Int(1)
	}
	return timeline.Int(0)
}

// buildRows materializes output rows from final segments. Column order
// matches Spec.columns: state, co-occurrence indicator, per-value columns,
// pattern columns.
func (s Spec) buildRows(id string, segs []segment, byValues []timeline.Value) []timeline.Interval {
	if len(segs) == 0 {
		return nil
	}

	exposed := func(seg segment) bool { return !s.isReference(seg.state) }

	var base []timeline.Value
	if s.Projection == NoProjection || s.ByType {
		base = make([]timeline.Value, len(segs))
		for i, seg := range segs {
			base[i] = seg.state
		}
	} else {
		base = s.projectSeries(segs, exposed)
	}

	var byCols [][]timeline.Value
	if s.ByType {
		byCols = make([][]timeline.Value, len(byValues))
		for vi, v := range byValues {
			byCols[vi] = s.projectSeries(segs, func(seg segment) bool { return stateMatches(seg, v) })
		}
	}

	var switched, pattern timeline.Value
	var stateDays []timeline.Value
	if s.Switching || s.SwitchingDetail {
		switched, pattern = switchSeries(segs)
	}
	if s.StateTime {
		stateDays = stateTimeSeries(segs)
	}

	rows := make([]timeline.Interval, len(segs))
	for i, seg := range segs {
		vals := make([]timeline.Value, 0, 4+len(byCols))
		vals = append(vals, base[i])
		if s.Overlap == Combine {
			vals = append(vals, boolInt(seg.co))
		}
		for _, col := range byCols {
			vals = append(vals, col[i])
		}
		if s.Switching {
			vals = append(vals, switched)
		}
		if s.SwitchingDetail {
			vals = append(vals, pattern)
		}
		if s.StateTime {
			vals = append(vals, stateDays[i])
		}
		rows[i] = timeline.Interval{ID: id, Start: seg.lo, Stop: seg.hi, Values: vals}
	}

	if s.recollapseRows() {
		rows = collapseRows(rows)
	}
	return rows
}

// recollapseRows reports whether projected rows should merge when every
// visible value is equal. Raw output collapsed at the segment level
// already; continuous accumulators differ per row by construction; calendar
// expansion was requested explicitly and must survive.
func (s Spec) recollapseRows() bool {
	return s.Projection != NoProjection && s.ExpandUnit == timeline.NoExpand
}

// collapseRows merges touching rows whose value tuples are all equal.
func collapseRows(rows []timeline.Interval) []timeline.Interval {
	out := rows[:0]
	for _, r := range rows {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if prev.Stop == r.Start && valuesEqual(prev.Values, r.Values) {
				prev.Stop = r.Stop
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func valuesEqual(a, b []timeline.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !timeline.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
