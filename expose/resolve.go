package expose

import (
	"slices"
	"strings"

	"github.com/roach88/persontime/timeline"
)

// segment is a resolved piece of one subject's timeline carrying a single
// visible state. Segments are sorted and non-overlapping; gaps between them
// are uncovered person-time awaiting reference fill.
type segment struct {
	lo, hi int64
	state  timeline.Value
	parts  []timeline.Value // distinct active values when state is composite
	co     bool             // two or more distinct values active (Combine)
	dose   float64          // dose accrued inside this segment
	miss   bool             // an accruing dose value was missing
}

func (g segment) days() int64 {
	return g.hi - g.lo
}

// resolve sweeps the elementary subintervals between span boundaries and
// assigns each one a winning state per the overlap policy. Each elementary
// subinterval is covered all-or-nothing by every active span, so the winner
// is well defined everywhere.
func (s Spec) resolve(spans []span) []segment {
	if len(spans) == 0 {
		return nil
	}

	bounds := make([]int64, 0, 2*len(spans))
	for _, sp := range spans {
		bounds = append(bounds, sp.lo, sp.hi)
	}
	slices.Sort(bounds)
	bounds = slices.Compact(bounds)

	var out []segment
	var active []span
	next := 0
	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := bounds[i], bounds[i+1]

		for next < len(spans) && spans[next].lo <= lo {
			active = append(active, spans[next])
			next++
		}
		live := active[:0]
		for _, sp := range active {
			if sp.hi > lo {
				live = append(live, sp)
			}
		}
		active = live
		if len(active) == 0 {
			continue
		}

		out = append(out, s.resolveOne(lo, hi, active))
	}
	return out
}

// resolveOne assigns the state of one elementary subinterval [lo, hi) from
// the spans active across it.
func (s Spec) resolveOne(lo, hi int64, active []span) segment {
	seg := segment{lo: lo, hi: hi}
	distinct := distinctValues(active)
	days := float64(hi - lo)

	if s.Overlap == Split {
		if len(distinct) == 1 {
			seg.state = distinct[0]
		} else {
			seg.state = compositeState(distinct)
			seg.parts = distinct
		}
		// Every active episode keeps accruing under a composite state.
		for _, sp := range active {
			seg.dose += sp.rate * days
			seg.miss = seg.miss || sp.miss
		}
		return seg
	}

	win := s.winner(active)
	seg.state = win.value
	seg.dose = win.rate * days
	seg.miss = win.miss
	if s.Overlap == Combine {
		seg.co = len(distinct) > 1
	}
	return seg
}

// winner picks the precedence-taking span. Priority ranks values first;
// remaining ties (and the whole decision under Layer and Combine) follow
// the layer rule: latest effective start, then latest effective stop, then
// value order, then input position.
func (s Spec) winner(active []span) span {
	best := active[0]
	for _, sp := range active[1:] {
		if s.precedes(sp, best) {
			best = sp
		}
	}
	return best
}

func (s Spec) precedes(a, b span) bool {
	if s.Overlap == Priority {
		ra, rb := s.rank(a), s.rank(b)
		if ra != rb {
			return ra < rb
		}
	}
	if a.lo != b.lo {
		return a.lo > b.lo
	}
	if a.hi != b.hi {
		return a.hi > b.hi
	}
	if c := timeline.Compare(a.value, b.value); c != 0 {
		return c > 0
	}
	return a.seq > b.seq
}

// rank returns a span's precedence under the priority policy, lower wins.
// An explicit episode priority is used as is; otherwise the value's 1-based
// position in the configured order decides, with unlisted values ranking
// below every listed one. The two scales line up: Priority 1 equals the
// first listed value.
func (s Spec) rank(sp span) int64 {
	if sp.prio > 0 {
		return sp.prio
	}
	for i, pv := range s.PriorityOrder {
		if timeline.Equal(pv, sp.value) {
			return int64(i) + 1
		}
	}
	return int64(len(s.PriorityOrder)) + 1
}

// distinctValues returns the sorted distinct values of the active spans.
func distinctValues(active []span) []timeline.Value {
	vals := make([]timeline.Value, len(active))
	for i, sp := range active {
		vals[i] = sp.value
	}
	slices.SortFunc(vals, timeline.Compare)
	return slices.CompactFunc(vals, timeline.Equal)
}

// compositeState renders concurrently active values as one state, joined in
// value order so the rendering never depends on input ordering.
func compositeState(distinct []timeline.Value) timeline.Value {
	parts := make([]string, len(distinct))
	for i, v := range distinct {
		parts[i] = timeline.Render(v)
	}
	return timeline.String(strings.Join(parts, "+"))
}

// stateMatches reports whether a segment's visible state is, or contains,
// the given raw value (composite split states match each component).
func stateMatches(seg segment, v timeline.Value) bool {
	if timeline.Equal(seg.state, v) {
		return true
	}
	for _, p := range seg.parts {
		if timeline.Equal(p, v) {
			return true
		}
	}
	return false
}
