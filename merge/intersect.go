package merge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/persontime/internal/shard"
	"github.com/roach88/persontime/timeline"
)

// Intersector combines canonical interval tables. Construct with New, then
// call Run once per input set; an Intersector is safe for concurrent Runs.
type Intersector struct {
	spec    Spec
	workers int
	runIDs  timeline.RunIDGenerator
}

// Option configures an Intersector.
type Option func(*Intersector)

// WithWorkers caps the number of subjects processed concurrently.
// Zero or negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(x *Intersector) { x.workers = n }
}

// WithRunIDs substitutes the run id generator.
func WithRunIDs(g timeline.RunIDGenerator) Option {
	return func(x *Intersector) { x.runIDs = g }
}

// New validates the spec and constructs an Intersector.
func New(spec Spec, opts ...Option) (*Intersector, error) {
	if errs := spec.Validate(); len(errs) > 0 {
		return nil, errs
	}
	x := &Intersector{
		spec:   spec,
		runIDs: timeline.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Result bundles the produced table with its provenance.
type Result struct {
	Table *timeline.Table
	Run   timeline.RunInfo
}

// source identifies where one output column reads from.
type source struct {
	input      int
	column     int
	continuous bool
}

// plan is the resolved output layout for one run's actual input tables.
type plan struct {
	columns []string
	sources []source // carry mode: one per output column

	// indicator mode
	indicator bool
	stateIdx  []int // per input: index of its state column
	refs      []timeline.Value
}

// inputSpec returns the positional input configuration, or the zero value
// when the spec leaves inputs unconfigured.
func (s Spec) inputSpec(i int) InputSpec {
	if i < len(s.Inputs) {
		return s.Inputs[i]
	}
	return InputSpec{}
}

// buildPlan resolves the spec against the actual tables. Errors here are
// configuration errors: the spec names columns the tables do not have, or
// the carried names collide.
func (s Spec) buildPlan(inputs []*timeline.Table) (plan, error) {
	if len(s.Inputs) > 0 && len(s.Inputs) != len(inputs) {
		return plan{}, timeline.ConfigErrors{{
			Code:    ErrInputSpecCount,
			Field:   "inputs",
			Message: fmt.Sprintf("%d input specs for %d tables", len(s.Inputs), len(inputs)),
		}}
	}

	if s.Indicator != nil {
		pl := plan{
			columns:   []string{s.Indicator.column()},
			indicator: true,
			stateIdx:  make([]int, len(inputs)),
			refs:      make([]timeline.Value, len(inputs)),
		}
		for i, t := range inputs {
			in := s.inputSpec(i)
			state := ""
			if len(in.Columns) > 0 {
				state = in.Columns[0]
			} else if len(t.Columns) > 0 {
				state = t.Columns[0]
			}
			idx, ok := t.ColumnIndex(state)
			if !ok {
				return plan{}, timeline.ConfigErrors{{
					Code:    ErrUnknownColumn,
					Field:   fmt.Sprintf("inputs[%d]", i),
					Message: fmt.Sprintf("no state column %q in input", state),
				}}
			}
			pl.stateIdx[i] = idx
			pl.refs[i] = in.Reference
		}
		return pl, nil
	}

	var pl plan
	var errs timeline.ConfigErrors
	seen := make(map[string]int)
	for i, t := range inputs {
		in := s.inputSpec(i)
		carried := in.Columns
		if len(carried) == 0 {
			carried = t.Columns
		}

		cont := make(map[string]bool, len(in.Continuous))
		for _, c := range in.Continuous {
			if !slices.Contains(carried, c) {
				errs = append(errs, timeline.ConfigError{
					Code:    ErrUnknownColumn,
					Field:   fmt.Sprintf("inputs[%d].continuous", i),
					Message: fmt.Sprintf("column %q is not carried from this input", c),
				})
			}
			cont[c] = true
		}

		for _, c := range carried {
			idx, ok := t.ColumnIndex(c)
			if !ok {
				errs = append(errs, timeline.ConfigError{
					Code:    ErrUnknownColumn,
					Field:   fmt.Sprintf("inputs[%d].columns", i),
					Message: fmt.Sprintf("no column %q in input", c),
				})
				continue
			}
			name, renamed := in.Rename[c]
			if !renamed {
				name = in.Prefix + c
			}
			if timeline.ReservedColumn(name) {
				errs = append(errs, timeline.ConfigError{
					Code:    ErrReservedColumn,
					Field:   fmt.Sprintf("inputs[%d]", i),
					Message: fmt.Sprintf("%q is a structural column name", name),
				})
				continue
			}
			if prev, dup := seen[name]; dup {
				errs = append(errs, timeline.ConfigError{
					Code:    ErrColumnCollision,
					Field:   fmt.Sprintf("inputs[%d]", i),
					Message: fmt.Sprintf("output column %q already carried from input %d; rename or prefix one side", name, prev),
				})
				continue
			}
			seen[name] = i
			pl.columns = append(pl.columns, name)
			pl.sources = append(pl.sources, source{input: i, column: idx, continuous: cont[c]})
		}
	}
	if len(errs) > 0 {
		return plan{}, errs
	}
	return pl, nil
}

// Run intersects the input tables.
//
// Ids must appear in every input; with Force, partial ids are dropped with
// a warning instead. Output rows cover, per id, [max of first starts, min
// of last stops), cut at every boundary any input contributes.
func (x *Intersector) Run(ctx context.Context, inputs ...*timeline.Table) (*Result, error) {
	if len(inputs) < 2 {
		return nil, timeline.ConfigErrors{{
			Code:    ErrInputCount,
			Field:   "inputs",
			Message: fmt.Sprintf("need at least two tables, got %d", len(inputs)),
		}}
	}

	pl, err := x.spec.buildPlan(inputs)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for i, t := range inputs {
		if len(t.Rows) == 0 {
			return nil, timeline.NewDataError(ErrEmptyInput, "", "input %d has no rows", i)
		}
		if violations := timeline.CheckCanonical(t); len(violations) > 0 {
			if !x.spec.Force {
				return nil, timeline.NewDataError(ErrNotCanonical, violations[0].ID,
					"input %d is not canonical: %s", i, violations[0])
			}
			warnings = append(warnings,
				fmt.Sprintf("input %d: %d canonical violations tolerated", i, len(violations)))
			for _, v := range timeline.BoundaryTouches(t) {
				warnings = append(warnings, fmt.Sprintf("input %d: %s", i, v))
			}
		}
	}

	groups := make([]map[string][]timeline.Interval, len(inputs))
	for i, t := range inputs {
		groups[i] = make(map[string][]timeline.Interval)
		for _, g := range t.Group() {
			groups[i][g.ID] = t.Rows[g.Lo:g.Hi]
		}
	}

	common, partial := splitIDs(groups)
	if len(partial) > 0 {
		if !x.spec.Force {
			id := partial[0]
			for i, g := range groups {
				if _, ok := g[id]; !ok {
					return nil, timeline.NewDataError(ErrIDMismatch, id,
						"id missing from input %d", i)
				}
			}
		}
		warnings = append(warnings,
			fmt.Sprintf("%d ids missing from some inputs were dropped", len(partial)))
	}

	slog.Info("intersection starting",
		"spec", x.spec.Fingerprint()[:12],
		"inputs", len(inputs),
		"subjects", len(common))

	rowsPerSubject := make([][]timeline.Interval, len(common))
	err = shard.ForEach(ctx, len(common), x.workers, func(ctx context.Context, i int) error {
		id := common[i]
		grp := make([][]timeline.Interval, len(groups))
		for gi := range groups {
			grp[gi] = groups[gi][id]
		}
		rowsPerSubject[i] = x.subject(pl, id, grp)
		return nil
	})
	if err != nil {
		return nil, err
	}

	table := timeline.NewTable(pl.columns...)
	for _, rows := range rowsPerSubject {
		table.Rows = append(table.Rows, rows...)
	}

	run := timeline.RunInfo{
		RunID:       x.runIDs.Generate(),
		Fingerprint: x.spec.Fingerprint(),
		Subjects:    int64(len(common)),
		Rows:        int64(len(table.Rows)),
		PersonTime:  table.PersonTime(),
		Warnings:    warnings,
	}

	slog.Info("intersection complete",
		"run_id", run.RunID,
		"rows", run.Rows,
		"person_time", run.PersonTime)
	return &Result{Table: table, Run: run}, nil
}

// splitIDs partitions the union of ids into those present in every input
// and those absent from at least one. Both slices are sorted.
func splitIDs(groups []map[string][]timeline.Interval) (common, partial []string) {
	union := make(map[string]int)
	for _, g := range groups {
		for id := range g {
			union[id]++
		}
	}
	for id, n := range union {
		if n == len(groups) {
			common = append(common, id)
		} else {
			partial = append(partial, id)
		}
	}
	slices.Sort(common)
	slices.Sort(partial)
	return common, partial
}

// subject intersects one id's row groups. Every group is sorted; within the
// coverage intersection each input has an active row at every instant, so
// the sweep advances k cursors across the merged boundary set.
func (x *Intersector) subject(pl plan, id string, grp [][]timeline.Interval) []timeline.Interval {
	lo := grp[0][0].Start
	hi := grp[0][len(grp[0])-1].Stop
	for _, rows := range grp[1:] {
		if s := rows[0].Start; s > lo {
			lo = s
		}
		if e := rows[len(rows)-1].Stop; e < hi {
			hi = e
		}
	}
	if lo > hi {
		return nil
	}

	cursors := make([]int, len(grp))
	advance := func(to int64) {
		for i, rows := range grp {
			for cursors[i]+1 < len(rows) && rows[cursors[i]+1].Start <= to {
				cursors[i]++
			}
		}
	}

	if lo == hi {
		// Coverages touch at a single instant: a degenerate row records the
		// shared boundary without contributing person-time.
		advance(lo)
		return []timeline.Interval{x.emit(pl, id, grp, cursors, lo, lo)}
	}

	bounds := []int64{lo, hi}
	for _, rows := range grp {
		for _, r := range rows {
			if r.Start > lo && r.Start < hi {
				bounds = append(bounds, r.Start)
			}
			if r.Stop > lo && r.Stop < hi {
				bounds = append(bounds, r.Stop)
			}
		}
	}
	slices.Sort(bounds)
	bounds = slices.Compact(bounds)

	out := make([]timeline.Interval, 0, len(bounds)-1)
	for j := 0; j+1 < len(bounds); j++ {
		advance(bounds[j])
		out = append(out, x.emit(pl, id, grp, cursors, bounds[j], bounds[j+1]))
	}
	return out
}

// emit materializes one output row from the rows active at [lo, hi).
func (x *Intersector) emit(pl plan, id string, grp [][]timeline.Interval, cursors []int, lo, hi int64) timeline.Interval {
	row := timeline.Interval{ID: id, Start: lo, Stop: hi}

	if pl.indicator {
		missing := false
		joint := true
		for i := range grp {
			v := grp[i][cursors[i]].Values[pl.stateIdx[i]]
			if timeline.IsMissing(v) {
				missing = true
				continue
			}
			if timeline.Equal(v, pl.refs[i]) {
				joint = false
			}
		}
		switch {
		case missing:
			row.Values = []timeline.Value{timeline.Missing{}}
		case joint:
			row.Values = []timeline.Value{timeline.Int(1)}
		default:
			row.Values = []timeline.Value{timeline.Int(0)}
		}
		return row
	}

	row.Values = make([]timeline.Value, len(pl.sources))
	for ci, src := range pl.sources {
		r := grp[src.input][cursors[src.input]]
		v := r.Values[src.column]
		if src.continuous {
			if d := r.Duration(); d > 0 && hi-lo != d {
				v = timeline.Scale(v, float64(hi-lo)/float64(d))
			}
		}
		row.Values[ci] = v
	}
	return row
}
