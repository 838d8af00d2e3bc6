package store

import (
	"context"
	"fmt"

	"github.com/roach88/persontime/timeline"
)

// WriteWindows upserts one study window per subject. A second write for the
// same id replaces its bounds.
func (s *Store) WriteWindows(ctx context.Context, windows []timeline.StudyWindow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write windows: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO study_windows (id, entry, exit)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET entry = excluded.entry, exit = excluded.exit
	`)
	if err != nil {
		return fmt.Errorf("write windows: prepare: %w", err)
	}
	defer stmt.Close()

	for _, w := range windows {
		if _, err := stmt.ExecContext(ctx, w.ID, w.Entry, w.Exit); err != nil {
			return fmt.Errorf("write windows: subject %s: %w", w.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write windows: commit: %w", err)
	}
	return nil
}

// WriteEpisodes appends raw exposure episodes in input order.
func (s *Store) WriteEpisodes(ctx context.Context, episodes []timeline.Episode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write episodes: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO episodes (id, start, stop, value, priority)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write episodes: prepare: %w", err)
	}
	defer stmt.Close()

	for i, e := range episodes {
		value, err := marshalValue(e.Value)
		if err != nil {
			return fmt.Errorf("write episodes: episode %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Start, e.Stop, value, e.Priority); err != nil {
			return fmt.Errorf("write episodes: subject %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write episodes: commit: %w", err)
	}
	return nil
}

// WriteEvents appends outcome records in input order. An absent primary
// date stores as NULL; competing dates store as a JSON day array.
func (s *Store) WriteEvents(ctx context.Context, records []timeline.EventRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (id, day, competing)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var day any
		if r.Date.Valid {
			day = r.Date.Day
		}
		if _, err := stmt.ExecContext(ctx, r.ID, day, marshalDates(r.Competing)); err != nil {
			return fmt.Errorf("write events: subject %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: commit: %w", err)
	}
	return nil
}

// WriteTable stores a named interval table and the run that produced it.
// Rewriting a name replaces its rows and repoints it at the new run; the
// runs table keeps the full history. Writing the same run twice is a no-op.
func (s *Store) WriteTable(ctx context.Context, name string, t *timeline.Table, run timeline.RunInfo) error {
	if name == "" {
		return timeline.ConfigError{
			Code:    ErrUnknownTable,
			Field:   "name",
			Message: "a table name is required",
		}
	}

	columns, err := marshalStrings(t.Columns)
	if err != nil {
		return fmt.Errorf("write table %s: columns: %w", name, err)
	}
	warnings, err := marshalStrings(run.Warnings)
	if err != nil {
		return fmt.Errorf("write table %s: warnings: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write table %s: begin tx: %w", name, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, table_name, fingerprint, subjects, row_count, person_time, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, run.RunID, name, run.Fingerprint, run.Subjects, run.Rows, run.PersonTime, warnings)
	if err != nil {
		return fmt.Errorf("write table %s: run: %w", name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO interval_tables (name, columns, run_id)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET columns = excluded.columns, run_id = excluded.run_id
	`, name, columns, run.RunID)
	if err != nil {
		return fmt.Errorf("write table %s: header: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM interval_rows WHERE name = ?`, name); err != nil {
		return fmt.Errorf("write table %s: clear rows: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO interval_rows (name, seq, id, start, stop, vals)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write table %s: prepare: %w", name, err)
	}
	defer stmt.Close()

	for i, r := range t.Rows {
		vals, err := marshalValues(r.Values)
		if err != nil {
			return fmt.Errorf("write table %s: row %d: %w", name, i, err)
		}
		if _, err := stmt.ExecContext(ctx, name, i, r.ID, r.Start, r.Stop, vals); err != nil {
			return fmt.Errorf("write table %s: row %d: %w", name, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write table %s: commit: %w", name, err)
	}
	return nil
}
