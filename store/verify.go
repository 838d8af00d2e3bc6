package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/persontime/timeline"
)

// VerifyRun checks a recomputed run against the provenance stored for a
// named table. The fingerprint ties the result to the exact spec; row count
// and person-time tie it to the exact data. Any disagreement means the
// stored table is not a reproduction of the rerun.
func (s *Store) VerifyRun(ctx context.Context, name string, rerun timeline.RunInfo) error {
	var stored timeline.RunInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT r.fingerprint, r.row_count, r.person_time
		FROM interval_tables t
		JOIN runs r ON r.run_id = t.run_id
		WHERE t.name = ?
	`, name).Scan(&stored.Fingerprint, &stored.Rows, &stored.PersonTime)
	if errors.Is(err, sql.ErrNoRows) {
		return timeline.ConfigError{
			Code:    ErrUnknownTable,
			Field:   "name",
			Message: fmt.Sprintf("no interval table named %q", name),
		}
	}
	if err != nil {
		return fmt.Errorf("verify run for %s: %w", name, err)
	}

	if stored.Fingerprint != rerun.Fingerprint {
		return &MismatchError{
			Table:  name,
			Field:  "fingerprint",
			Stored: short(stored.Fingerprint),
			Rerun:  short(rerun.Fingerprint),
		}
	}
	if stored.Rows != rerun.Rows {
		return &MismatchError{
			Table:  name,
			Field:  "rows",
			Stored: strconv.FormatInt(stored.Rows, 10),
			Rerun:  strconv.FormatInt(rerun.Rows, 10),
		}
	}
	if stored.PersonTime != rerun.PersonTime {
		return &MismatchError{
			Table:  name,
			Field:  "person_time",
			Stored: strconv.FormatInt(stored.PersonTime, 10),
			Rerun:  strconv.FormatInt(rerun.PersonTime, 10),
		}
	}
	return nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
