package expose

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/persontime/internal/shard"
	"github.com/roach88/persontime/timeline"
)

// Partitioner turns raw exposure episodes into a canonical interval table
// for one study population. Construct with New, then call Run once per
// input set; a Partitioner is safe for concurrent Runs.
type Partitioner struct {
	spec     Spec
	workers  int
	runIDs   timeline.RunIDGenerator
	coverage bool
}

// Option configures a Partitioner.
type Option func(*Partitioner)

// WithWorkers caps the number of subjects processed concurrently.
// Zero or negative means GOMAXPROCS. Output is identical for any value.
func WithWorkers(n int) Option {
	return func(p *Partitioner) { p.workers = n }
}

// WithRunIDs substitutes the run id generator. Tests use a fixed generator
// for byte-stable golden output.
func WithRunIDs(g timeline.RunIDGenerator) Option {
	return func(p *Partitioner) { p.runIDs = g }
}

// WithCoverage enables the per-subject coverage report on the result.
func WithCoverage() Option {
	return func(p *Partitioner) { p.coverage = true }
}

// New validates the spec and constructs a Partitioner. Configuration
// problems are reported together as timeline.ConfigErrors.
func New(spec Spec, opts ...Option) (*Partitioner, error) {
	if errs := spec.Validate(); len(errs) > 0 {
		return nil, errs
	}
	p := &Partitioner{
		spec:   spec,
		runIDs: timeline.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Result bundles the produced table with its provenance.
type Result struct {
	Table    *timeline.Table
	Run      timeline.RunInfo
	Coverage []timeline.CoverageRow
}

// Run builds the interval table for the given study windows and episodes.
//
// Every window subject yields rows tiling [entry, exit) exactly, so
// total person-time equals the summed window durations. Episodes whose
// subject has no window fail the run with a data error; windows with no
// episodes still produce reference rows.
func (p *Partitioner) Run(ctx context.Context, windows []timeline.StudyWindow, episodes []timeline.Episode) (*Result, error) {
	if err := validateInputs(windows, episodes); err != nil {
		return nil, err
	}

	ws := slices.Clone(windows)
	slices.SortFunc(ws, func(a, b timeline.StudyWindow) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	// Group episodes by subject, preserving input order within a subject
	// so the sequence tie-break stays deterministic.
	bySubject := make(map[string][]timeline.Episode, len(ws))
	for _, ep := range episodes {
		bySubject[ep.ID] = append(bySubject[ep.ID], ep)
	}

	var byValues []timeline.Value
	if p.spec.ByType {
		byValues = distinctEpisodeValues(episodes)
	}

	slog.Info("partition starting",
		"spec", p.spec.Fingerprint()[:12],
		"subjects", len(ws),
		"episodes", len(episodes))

	rowsPerSubject := make([][]timeline.Interval, len(ws))
	statsPerSubject := make([]adjustStats, len(ws))
	err := shard.ForEach(ctx, len(ws), p.workers, func(ctx context.Context, i int) error {
		w := ws[i]
		rows, stats, err := p.subject(w, bySubject[w.ID], byValues)
		if err != nil {
			return err
		}
		rowsPerSubject[i] = rows
		statsPerSubject[i] = stats
		return nil
	})
	if err != nil {
		return nil, err
	}

	table := timeline.NewTable(p.spec.columns(byValues)...)
	for _, rows := range rowsPerSubject {
		table.Rows = append(table.Rows, rows...)
	}

	var stats adjustStats
	for _, s := range statsPerSubject {
		stats.outside += s.outside
		stats.filtered += s.filtered
	}

	run := timeline.RunInfo{
		RunID:       p.runIDs.Generate(),
		Fingerprint: p.spec.Fingerprint(),
		Subjects:    int64(len(ws)),
		Rows:        int64(len(table.Rows)),
		PersonTime:  table.PersonTime(),
	}
	if stats.outside > 0 {
		run.Warnings = append(run.Warnings,
			fmt.Sprintf("%d episodes fell outside their study window", stats.outside))
	}
	if stats.filtered > 0 {
		run.Warnings = append(run.Warnings,
			fmt.Sprintf("%d episodes rejected by the duration window", stats.filtered))
	}

	res := &Result{Table: table, Run: run}
	if p.coverage {
		res.Coverage = timeline.Coverage(table, ws)
	}

	slog.Info("partition complete",
		"run_id", run.RunID,
		"rows", run.Rows,
		"person_time", run.PersonTime,
		"warnings", len(run.Warnings))
	return res, nil
}

// subject runs the full per-subject pipeline. Stages are ordered so each
// consumes what the previous guarantees: adjusted spans are sorted,
// resolved segments are disjoint, bridged segments are gapless within
// runs, and reference fill leaves [entry, exit) tiled exactly.
func (p *Partitioner) subject(w timeline.StudyWindow, episodes []timeline.Episode, byValues []timeline.Value) ([]timeline.Interval, adjustStats, error) {
	spans, stats, err := p.spec.adjustEpisodes(w, episodes)
	if err != nil {
		return nil, stats, err
	}

	segs := p.spec.resolve(spans)
	segs = p.spec.graceBridge(segs)
	segs = p.spec.mergeConsolidate(segs)
	segs = p.spec.carryforwardExtend(segs, w.Exit)
	segs = p.spec.fillgapsExtend(segs, w.Exit)
	segs = p.spec.referenceFill(segs, w)
	segs = collapse(segs)
	segs = p.spec.expandCalendar(segs)

	return p.spec.buildRows(w.ID, segs, byValues), stats, nil
}

// distinctEpisodeValues collects the distinct non-missing raw values in
// canonical order. These name the per-value columns, so the set must come
// from the whole input, not one subject.
func distinctEpisodeValues(episodes []timeline.Episode) []timeline.Value {
	vals := make([]timeline.Value, 0, len(episodes))
	for _, ep := range episodes {
		if timeline.IsMissing(ep.Value) {
			continue
		}
		vals = append(vals, ep.Value)
	}
	slices.SortFunc(vals, timeline.Compare)
	return slices.CompactFunc(vals, timeline.Equal)
}
