package store

import (
	"fmt"
	"strings"

	"github.com/roach88/persontime/timeline"
)

// Filter narrows subject-level reads. The zero value (or nil) selects every
// subject. IDs and IDRange are mutually exclusive.
type Filter struct {
	// IDs selects exactly these subjects.
	IDs []string

	// IDRange selects subjects with lo <= id <= hi in byte order, for
	// streaming a large cohort in slices.
	IDRange *[2]string
}

// Validate reports every problem with the filter.
func (f *Filter) Validate() timeline.ConfigErrors {
	if f == nil {
		return nil
	}
	var errs timeline.ConfigErrors

	if len(f.IDs) > 0 && f.IDRange != nil {
		errs = append(errs, timeline.ConfigError{
			Code:    ErrFilterConflict,
			Field:   "ids",
			Message: "ids and id_range are mutually exclusive",
		})
	}
	for i, id := range f.IDs {
		if id == "" {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrFilterEmptyID,
				Field:   fmt.Sprintf("ids[%d]", i),
				Message: "empty subject id",
			})
		}
	}
	if r := f.IDRange; r != nil && r[0] > r[1] {
		errs = append(errs, timeline.ConfigError{
			Code:    ErrFilterRange,
			Field:   "id_range",
			Message: fmt.Sprintf("lower bound %q after upper bound %q", r[0], r[1]),
		})
	}

	return errs
}

// compile returns the WHERE clause and its parameters. Values are always
// parameterized, never interpolated.
func (f *Filter) compile() (string, []any) {
	if f == nil {
		return "", nil
	}
	switch {
	case len(f.IDs) > 0:
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.IDs)), ",")
		args := make([]any, len(f.IDs))
		for i, id := range f.IDs {
			args[i] = id
		}
		return " WHERE id IN (" + placeholders + ")", args
	case f.IDRange != nil:
		return " WHERE id >= ? AND id <= ?", []any{f.IDRange[0], f.IDRange[1]}
	}
	return "", nil
}
