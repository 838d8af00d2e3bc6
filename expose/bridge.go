package expose

import (
	"github.com/roach88/persontime/timeline"
)

// Gap bridging and consolidation. All helpers operate on sorted,
// non-overlapping segments and preserve that shape. Gap lengths are counts
// of uncovered days: the gap between [a,b) and [c,d) is c-b, so a gap equal
// to the threshold bridges and threshold+1 does not.

// graceBridge absorbs interruptions between same-state segments up to the
// state's grace threshold. Bridged days adopt the flanking state but accrue
// no dose (no episode covered them).
func (s Spec) graceBridge(segs []segment) []segment {
	if s.Grace == 0 && len(s.GraceByValue) == 0 {
		return segs
	}
	return bridgeSame(segs, s.graceFor)
}

// mergeConsolidate consolidates adjacent same-state segments separated by a
// gap of up to Merge days into one row. With Merge == 0 this is a pure
// row-count reduction over touching segments; the always-on collapse pass
// covers that case, so the walk only runs for positive thresholds.
func (s Spec) mergeConsolidate(segs []segment) []segment {
	if s.Merge == 0 {
		return segs
	}
	return bridgeSame(segs, func(timeline.Value) int64 { return s.Merge })
}

// bridgeSame merges consecutive segments with identical visible state when
// the gap between them is within the state's threshold.
func bridgeSame(segs []segment, threshold func(timeline.Value) int64) []segment {
	out := segs[:0]
	for _, seg := range segs {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			gap := seg.lo - prev.hi
			if gap <= threshold(prev.state) && sameVisible(*prev, seg) {
				prev.hi = seg.hi
				prev.dose += seg.dose
				prev.miss = prev.miss || seg.miss
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}

// carryforwardExtend extends each segment across a following uncovered gap
// of up to Carryforward days, whatever comes after (including the terminal
// gap before exit). Unidirectional: the earlier state always wins the gap.
func (s Spec) carryforwardExtend(segs []segment, exit int64) []segment {
	if s.Carryforward == 0 {
		return segs
	}
	for i := range segs {
		var gap int64
		if i+1 < len(segs) {
			gap = segs[i+1].lo - segs[i].hi
		} else {
			gap = exit - segs[i].hi
		}
		if gap > 0 && gap <= s.Carryforward {
			segs[i].hi += gap
		}
	}
	return segs
}

// fillgapsExtend extends the terminal resolved state Fillgaps days past its
// last stop, clipped to exit.
func (s Spec) fillgapsExtend(segs []segment, exit int64) []segment {
	if s.Fillgaps == 0 || len(segs) == 0 {
		return segs
	}
	last := &segs[len(segs)-1]
	ext := last.hi + s.Fillgaps
	if ext > exit {
		ext = exit
	}
	if ext > last.hi {
		last.hi = ext
	}
	return segs
}

// referenceFill closes every remaining uncovered span with the reference
// state: the baseline before the first segment, interior gaps, and the tail
// through exit. The result tiles [entry, exit) exactly.
func (s Spec) referenceFill(segs []segment, w timeline.StudyWindow) []segment {
	out := make([]segment, 0, 2*len(segs)+1)
	cursor := w.Entry
	for _, seg := range segs {
		if seg.lo > cursor {
			out = append(out, segment{lo: cursor, hi: seg.lo, state: s.referenceState()})
		}
		out = append(out, seg)
		cursor = seg.hi
	}
	if cursor < w.Exit {
		out = append(out, segment{lo: cursor, hi: w.Exit, state: s.referenceState()})
	}
	return out
}

// collapse merges touching segments whose visible state is identical.
// Always on: adjacent same-state rows are one row.
func collapse(segs []segment) []segment {
	out := segs[:0]
	for _, seg := range segs {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if prev.hi == seg.lo && sameVisible(*prev, seg) {
				prev.hi = seg.hi
				prev.dose += seg.dose
				prev.miss = prev.miss || seg.miss
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}

// sameVisible reports whether two segments present the same visible state,
// including the co-occurrence indicator.
func sameVisible(a, b segment) bool {
	return a.co == b.co && timeline.Equal(a.state, b.state)
}
