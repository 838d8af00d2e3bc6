package expose

import (
	"strings"

	"github.com/roach88/persontime/timeline"
)

// switchSeries summarizes a subject's trajectory: a 0/1 flag for whether
// more than one distinct state appears, and the sequence of states in order
// of first appearance joined by "->". Both are constant across the
// subject's rows.
func switchSeries(segs []segment) (switched, pattern timeline.Value) {
	var order []timeline.Value
	for _, seg := range segs {
		found := false
		for _, v := range order {
			if timeline.Equal(v, seg.state) {
				found = true
				break
			}
		}
		if !found {
			order = append(order, seg.state)
		}
	}

	labels := make([]string, len(order))
	for i, v := range order {
		labels[i] = timeline.Render(v)
	}
	return boolInt(len(order) > 1), timeline.String(strings.Join(labels, "->"))
}

// stateTimeSeries gives, per row, the days accumulated in the current run
// of the row's state, measured at the row's stop. A change of state resets
// the counter.
func stateTimeSeries(segs []segment) []timeline.Value {
	out := make([]timeline.Value, len(segs))
	var runStart int64
	for i, seg := range segs {
		if i == 0 || !timeline.Equal(seg.state, segs[i-1].state) || segs[i-1].hi != seg.lo {
			runStart = seg.lo
		}
		out[i] = timeline.Int(seg.hi - runStart)
	}
	return out
}
