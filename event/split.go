package event

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/persontime/internal/shard"
	"github.com/roach88/persontime/timeline"
)

// Splitter integrates outcome events into a canonical interval table.
// Construct with New, then call Run once per input set; a Splitter is safe
// for concurrent Runs.
type Splitter struct {
	spec    Spec
	workers int
	runIDs  timeline.RunIDGenerator
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithWorkers caps the number of subjects processed concurrently.
// Zero or negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(sp *Splitter) { sp.workers = n }
}

// WithRunIDs substitutes the run id generator.
func WithRunIDs(g timeline.RunIDGenerator) Option {
	return func(sp *Splitter) { sp.runIDs = g }
}

// New validates the spec and constructs a Splitter.
func New(spec Spec, opts ...Option) (*Splitter, error) {
	if errs := spec.Validate(); len(errs) > 0 {
		return nil, errs
	}
	sp := &Splitter{
		spec:   spec,
		runIDs: timeline.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(sp)
	}
	return sp, nil
}

// Result bundles the produced table with its provenance.
type Result struct {
	Table *timeline.Table
	Run   timeline.RunInfo

	// Events counts the rows carrying a positive status flag.
	Events int64
}

// mark is one subject's resolved effective event: the day it takes effect
// and the status code it assigns.
type mark struct {
	day  int64
	code int64
}

// plan is the resolved output layout for one run's actual input table.
type plan struct {
	columns []string
	cont    []int // input column indexes rescaled at splits
	timeIdx int   // -1 when no time column
	divisor float64
}

// buildPlan resolves the spec against the actual table columns.
func (s Spec) buildPlan(t *timeline.Table) (plan, error) {
	var errs timeline.ConfigErrors

	pl := plan{timeIdx: -1, divisor: s.TimeUnit.Divisor()}
	for _, c := range s.Continuous {
		idx, ok := t.ColumnIndex(c)
		if !ok {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrUnknownColumn,
				Field:   "continuous",
				Message: fmt.Sprintf("no column %q in input", c),
			})
			continue
		}
		pl.cont = append(pl.cont, idx)
	}

	outputs := []struct{ field, name string }{
		{"generate", s.generate()},
		{"time_column", s.TimeColumn},
	}
	for _, o := range outputs {
		if o.name == "" {
			continue
		}
		if _, exists := t.ColumnIndex(o.name); exists {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrColumnCollision,
				Field:   o.field,
				Message: fmt.Sprintf("%q is already an input column", o.name),
			})
		}
	}
	if len(errs) > 0 {
		return plan{}, errs
	}

	pl.columns = append(pl.columns, t.Columns...)
	pl.columns = append(pl.columns, s.generate())
	if s.TimeColumn != "" {
		pl.timeIdx = len(pl.columns)
		pl.columns = append(pl.columns, s.TimeColumn)
	}
	return pl, nil
}

// resolve reduces one record to its effective event: the earliest of the
// primary and competing dates. A competing date must be strictly earlier to
// displace the primary, and earlier-listed competing dates win ties.
func (s Spec) resolve(rec timeline.EventRecord) (mark, bool, error) {
	if len(s.CompetingCodes) > 0 && len(rec.Competing) > len(s.CompetingCodes) {
		return mark{}, false, timeline.NewDataError(ErrCompetingCount, rec.ID,
			"%d competing dates for %d configured codes",
			len(rec.Competing), len(s.CompetingCodes))
	}

	var m mark
	ok := false
	if rec.Date.Valid {
		m = mark{day: rec.Date.Day, code: 1}
		ok = true
	}
	for i, d := range rec.Competing {
		if !d.Valid {
			continue
		}
		code := int64(i + 2)
		if len(s.CompetingCodes) > 0 {
			code = s.CompetingCodes[i]
		}
		if !ok || d.Day < m.day {
			m = mark{day: d.Day, code: code}
			ok = true
		}
	}
	return m, ok, nil
}

// Run splits the table at the events' effective dates and appends the
// status column.
//
// Subjects without a usable event date pass through with every row flagged
// 0. Records for ids the table lacks fail the run with a data error.
func (sp *Splitter) Run(ctx context.Context, table *timeline.Table, events []timeline.EventRecord) (*Result, error) {
	if len(table.Rows) == 0 {
		return nil, timeline.NewDataError(ErrEmptyTable, "", "interval table has no rows")
	}
	if violations := timeline.CheckCanonical(table); len(violations) > 0 {
		return nil, timeline.NewDataError(ErrNotCanonical, violations[0].ID,
			"input is not canonical: %s", violations[0])
	}

	pl, err := sp.spec.buildPlan(table)
	if err != nil {
		return nil, err
	}

	groups := table.Group()
	index := make(map[string]bool, len(groups))
	for _, g := range groups {
		index[g.ID] = true
	}

	marksByID := make(map[string][]mark)
	for _, rec := range events {
		if !index[rec.ID] {
			return nil, timeline.NewDataError(ErrUnknownSubject, rec.ID,
				"event record for a subject the table lacks")
		}
		m, ok, err := sp.spec.resolve(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			marksByID[rec.ID] = append(marksByID[rec.ID], m)
		}
	}
	for _, marks := range marksByID {
		slices.SortFunc(marks, func(a, b mark) int {
			if a.day != b.day {
				return cmp.Compare(a.day, b.day)
			}
			return cmp.Compare(a.code, b.code)
		})
	}

	var warnings []string
	if len(events) == 0 {
		warnings = append(warnings, "no event records: every interval is censored")
	}

	slog.Info("event split starting",
		"spec", sp.spec.Fingerprint()[:12],
		"subjects", len(groups),
		"records", len(events))

	rowsPerSubject := make([][]timeline.Interval, len(groups))
	flagsPerSubject := make([]int64, len(groups))
	err = shard.ForEach(ctx, len(groups), sp.workers, func(ctx context.Context, i int) error {
		g := groups[i]
		rows := table.Rows[g.Lo:g.Hi]
		marks := marksByID[g.ID]
		if sp.spec.Semantics == Recurring {
			rowsPerSubject[i], flagsPerSubject[i] = sp.subjectRecurring(pl, rows, marks)
		} else {
			rowsPerSubject[i], flagsPerSubject[i] = sp.subjectSingle(pl, rows, marks)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := timeline.NewTable(pl.columns...)
	var flagged int64
	for i, rows := range rowsPerSubject {
		out.Rows = append(out.Rows, rows...)
		flagged += flagsPerSubject[i]
	}

	run := timeline.RunInfo{
		RunID:       sp.runIDs.Generate(),
		Fingerprint: sp.spec.Fingerprint(),
		Subjects:    int64(len(groups)),
		Rows:        int64(len(out.Rows)),
		PersonTime:  out.PersonTime(),
		Warnings:    warnings,
	}

	slog.Info("event split complete",
		"run_id", run.RunID,
		"rows", run.Rows,
		"events", flagged,
		"person_time", run.PersonTime)
	return &Result{Table: out, Run: run, Events: flagged}, nil
}

// attribute returns the index of the row an event day belongs to: the
// unique row with Start < day <= Stop. Risk begins strictly after a row's
// start, so a day equal to a row's start falls to the row ending there,
// and degenerate rows never qualify.
func attribute(rows []timeline.Interval, day int64) int {
	for i, r := range rows {
		if r.Start < day && day <= r.Stop {
			return i
		}
	}
	return -1
}

// subjectSingle applies the earliest attributable mark as a terminal event:
// the row ending at the mark is flagged and everything past the mark is
// dropped. Marks that attribute to no row (outside coverage, or exactly at
// the subject's first start) are skipped.
func (sp *Splitter) subjectSingle(pl plan, rows []timeline.Interval, marks []mark) ([]timeline.Interval, int64) {
	for _, m := range marks {
		i := attribute(rows, m.day)
		if i < 0 {
			continue
		}
		out := make([]timeline.Interval, 0, i+1)
		for _, r := range rows[:i] {
			out = append(out, sp.emit(pl, r, 0))
		}
		hit := rows[i]
		if m.day < hit.Stop {
			hit = cutSegments(hit, []int64{m.day}, pl.cont)[0]
		}
		out = append(out, sp.emit(pl, hit, m.code))
		// Only degenerate rows sitting exactly at the event day can
		// still qualify here; they carry no time past the censor point.
		for _, r := range rows[i+1:] {
			if r.Stop <= m.day {
				out = append(out, sp.emit(pl, r, 0))
			}
		}
		return out, 1
	}

	out := make([]timeline.Interval, 0, len(rows))
	for _, r := range rows {
		out = append(out, sp.emit(pl, r, 0))
	}
	return out, 0
}

// subjectRecurring splits every row at every attributable mark and flags
// each row ending at a mark's day, keeping all person-time.
func (sp *Splitter) subjectRecurring(pl plan, rows []timeline.Interval, marks []mark) ([]timeline.Interval, int64) {
	markAt := make(map[int64]int64, len(marks))
	for _, m := range marks {
		// Marks are sorted by (day, code), so the primary outranks
		// competing codes sharing a day.
		if _, dup := markAt[m.day]; !dup {
			markAt[m.day] = m.code
		}
	}

	var flagged int64
	out := make([]timeline.Interval, 0, len(rows))
	for _, r := range rows {
		var cuts []int64
		for _, m := range marks {
			if r.Start < m.day && m.day < r.Stop {
				cuts = append(cuts, m.day)
			}
		}
		cuts = slices.Compact(cuts)
		for _, seg := range cutSegments(r, cuts, pl.cont) {
			code := int64(0)
			// A degenerate row ending at a mark day carries no risk time
			// and stays unflagged.
			if c, hit := markAt[seg.Stop]; hit && seg.Stop > r.Start {
				code = c
				flagged++
			}
			out = append(out, sp.emit(pl, seg, code))
		}
	}
	return out, flagged
}

// cutSegments splits one row at the given ascending interior days,
// rescaling continuous columns by each segment's share of the original
// duration. No cuts returns the row unchanged.
func cutSegments(r timeline.Interval, cuts []int64, cont []int) []timeline.Interval {
	if len(cuts) == 0 {
		return []timeline.Interval{r}
	}
	bounds := make([]int64, 0, len(cuts)+2)
	bounds = append(bounds, r.Start)
	bounds = append(bounds, cuts...)
	bounds = append(bounds, r.Stop)

	orig := r.Duration()
	segs := make([]timeline.Interval, 0, len(bounds)-1)
	for j := 0; j+1 < len(bounds); j++ {
		seg := timeline.Interval{ID: r.ID, Start: bounds[j], Stop: bounds[j+1]}
		seg.Values = slices.Clone(r.Values)
		for _, ci := range cont {
			seg.Values[ci] = timeline.Scale(r.Values[ci], float64(seg.Duration())/float64(orig))
		}
		segs = append(segs, seg)
	}
	return segs
}

// emit materializes one output row: the input values plus the status flag
// and, when configured, the row duration column.
func (sp *Splitter) emit(pl plan, r timeline.Interval, code int64) timeline.Interval {
	vals := make([]timeline.Value, len(r.Values), len(pl.columns))
	copy(vals, r.Values)
	vals = append(vals, timeline.Int(code))
	if pl.timeIdx >= 0 {
		vals = append(vals, timeline.Float(float64(r.Duration())/pl.divisor))
	}
	return timeline.Interval{ID: r.ID, Start: r.Start, Stop: r.Stop, Values: vals}
}
