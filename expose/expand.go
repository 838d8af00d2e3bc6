package expose

import (
	"github.com/roach88/persontime/timeline"
)

// expandCalendar cuts segments at calendar-unit boundaries so output rows
// align to weeks, months, quarters, or years. States are unchanged; dose
// splits by day share so per-subject totals are preserved exactly.
//
// Expansion runs before projections, so accumulators and pattern columns
// are computed per cut; the categorical recollapse is skipped afterwards
// because the caller asked for this granularity.
func (s Spec) expandCalendar(segs []segment) []segment {
	if s.ExpandUnit == timeline.NoExpand {
		return segs
	}
	out := make([]segment, 0, len(segs))
	for _, seg := range segs {
		if seg.lo >= seg.hi {
			out = append(out, seg)
			continue
		}
		days := seg.days()
		lo := seg.lo
		for lo < seg.hi {
			hi := s.ExpandUnit.NextBoundary(lo)
			if hi > seg.hi {
				hi = seg.hi
			}
			piece := seg
			piece.lo, piece.hi = lo, hi
			piece.dose = seg.dose * float64(hi-lo) / float64(days)
			out = append(out, piece)
			lo = hi
		}
	}
	return out
}
