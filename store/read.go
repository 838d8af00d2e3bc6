package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/persontime/timeline"
)

// ReadWindows returns study windows matching the filter, ordered by id.
// Returns an empty slice, not nil, when nothing matches.
func (s *Store) ReadWindows(ctx context.Context, f *Filter) ([]timeline.StudyWindow, error) {
	if err := f.Validate().OrNil(); err != nil {
		return nil, err
	}
	where, args := f.compile()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entry, exit FROM study_windows`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	windows := []timeline.StudyWindow{}
	for rows.Next() {
		var w timeline.StudyWindow
		if err := rows.Scan(&w.ID, &w.Entry, &w.Exit); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate windows: %w", err)
	}
	return windows, nil
}

// ReadEpisodes returns episodes matching the filter, ordered by id then
// insertion order.
func (s *Store) ReadEpisodes(ctx context.Context, f *Filter) ([]timeline.Episode, error) {
	if err := f.Validate().OrNil(); err != nil {
		return nil, err
	}
	where, args := f.compile()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start, stop, value, priority FROM episodes`+where+` ORDER BY id, seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	episodes := []timeline.Episode{}
	for rows.Next() {
		var e timeline.Episode
		var value string
		if err := rows.Scan(&e.ID, &e.Start, &e.Stop, &value, &e.Priority); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		if e.Value, err = unmarshalValue(value); err != nil {
			return nil, fmt.Errorf("episode for subject %s: %w", e.ID, err)
		}
		episodes = append(episodes, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return episodes, nil
}

// ReadEvents returns outcome records matching the filter, ordered by id
// then insertion order.
func (s *Store) ReadEvents(ctx context.Context, f *Filter) ([]timeline.EventRecord, error) {
	if err := f.Validate().OrNil(); err != nil {
		return nil, err
	}
	where, args := f.compile()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, day, competing FROM events`+where+` ORDER BY id, seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []timeline.EventRecord{}
	for rows.Next() {
		var r timeline.EventRecord
		var day sql.NullInt64
		var competing string
		if err := rows.Scan(&r.ID, &day, &competing); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if day.Valid {
			r.Date = timeline.NewDate(day.Int64)
		}
		if r.Competing, err = unmarshalDates(competing); err != nil {
			return nil, fmt.Errorf("event for subject %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// ReadTable returns a stored interval table by name, rows in their written
// order.
func (s *Store) ReadTable(ctx context.Context, name string) (*timeline.Table, error) {
	var columnsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT columns FROM interval_tables WHERE name = ?`, name).Scan(&columnsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timeline.ConfigError{
			Code:    ErrUnknownTable,
			Field:   "name",
			Message: fmt.Sprintf("no interval table named %q", name),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}

	columns, err := unmarshalStrings(columnsJSON)
	if err != nil {
		return nil, fmt.Errorf("read table %s: columns: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start, stop, vals FROM interval_rows WHERE name = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	defer rows.Close()

	t := timeline.NewTable(columns...)
	for i := 0; rows.Next(); i++ {
		var iv timeline.Interval
		var vals string
		if err := rows.Scan(&iv.ID, &iv.Start, &iv.Stop, &vals); err != nil {
			return nil, fmt.Errorf("read table %s: row %d: %w", name, i, err)
		}
		if iv.Values, err = unmarshalValues(vals); err != nil {
			return nil, fmt.Errorf("read table %s: row %d: %w", name, i, err)
		}
		if len(iv.Values) != len(columns) {
			return nil, fmt.Errorf("read table %s: row %d: %d values for %d columns",
				name, i, len(iv.Values), len(columns))
		}
		t.Rows = append(t.Rows, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	return t, nil
}

// Run is one recorded engine run and the table it produced.
type Run struct {
	Table string
	timeline.RunInfo
}

// ReadRuns returns every recorded run, oldest first.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, table_name, fingerprint, subjects, row_count, person_time, warnings
		FROM runs
		ORDER BY created_at, run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var warnings string
		if err := rows.Scan(&r.RunID, &r.Table, &r.Fingerprint,
			&r.Subjects, &r.Rows, &r.PersonTime, &warnings); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.Warnings, err = unmarshalStrings(warnings); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.RunID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
