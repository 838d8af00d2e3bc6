package expose

import (
	"slices"

	"github.com/roach88/persontime/timeline"
)

// span is an adjusted episode in boundary coordinates: it covers [lo, hi).
// Adjustment has already applied point-time, lag, washout, the duration
// window filter, and study-window clipping.
type span struct {
	lo, hi int64
	value  timeline.Value
	prio   int64   // explicit episode rank, 0 when unranked
	rate   float64 // dose accrual per day (dose projection only)
	miss   bool    // dose value was missing
	seq    int     // input position, final deterministic tie-break
}

// adjustStats counts episodes removed during adjustment, reported as run
// warnings.
type adjustStats struct {
	outside  int // no overlap with the study window after adjustment
	filtered int // rejected by the duration window
}

// adjustEpisodes converts one subject's raw episodes to sorted boundary
// spans. A closed episode [start, stop] becomes the span
// [start+lag, stop+washout+1) clipped to [entry, exit); spans emptied by
// clipping are discarded, which is expected behavior rather than an error.
func (s Spec) adjustEpisodes(w timeline.StudyWindow, episodes []timeline.Episode) ([]span, adjustStats, error) {
	var stats adjustStats
	spans := make([]span, 0, len(episodes))

	for i, ep := range episodes {
		start, stop := ep.Start, ep.Stop
		if s.PointTime {
			stop = start
		}
		lo := start + s.Lag
		hi := stop + s.Washout + 1

		if lo >= hi {
			// Lag pushed the start past the washed-out stop.
			stats.outside++
			continue
		}
		days := hi - lo
		if s.Window != nil && (days < s.Window.Min || (s.Window.Max != 0 && days > s.Window.Max)) {
			stats.filtered++
			continue
		}

		sp := span{lo: lo, hi: hi, value: ep.Value, prio: ep.Priority, seq: i}
		if s.Projection == Dose {
			f, ok := timeline.AsFloat(ep.Value)
			switch {
			case timeline.IsMissing(ep.Value):
				sp.miss = true
			case !ok:
				return nil, stats, timeline.NewDataError(ErrDoseNotNumeric, ep.ID,
					"dose projection requires numeric episode values, got %q", timeline.Render(ep.Value))
			default:
				// Rate is per unclipped day so clipping truncates dose
				// proportionally instead of inflating it.
				sp.rate = f / float64(days)
			}
		}

		if sp.lo < w.Entry {
			sp.lo = w.Entry
		}
		if sp.hi > w.Exit {
			sp.hi = w.Exit
		}
		if sp.lo >= sp.hi {
			stats.outside++
			continue
		}
		spans = append(spans, sp)
	}

	slices.SortStableFunc(spans, func(a, b span) int {
		if a.lo != b.lo {
			if a.lo < b.lo {
				return -1
			}
			return 1
		}
		if a.hi != b.hi {
			if a.hi < b.hi {
				return -1
			}
			return 1
		}
		if c := timeline.Compare(a.value, b.value); c != 0 {
			return c
		}
		return a.seq - b.seq
	})

	return spans, stats, nil
}
