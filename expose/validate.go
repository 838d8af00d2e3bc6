package expose

import (
	"fmt"

	"github.com/roach88/persontime/timeline"
)

// Configuration error codes (E100-E149).
const (
	ErrMissingReference  timeline.ErrorCode = "E100" // reference state required
	ErrNegativeDuration  timeline.ErrorCode = "E101" // negative time adjustment
	ErrPriorityMissing   timeline.ErrorCode = "E102" // priority policy without order
	ErrPriorityDuplicate timeline.ErrorCode = "E103" // duplicate value in order
	ErrPriorityUnused    timeline.ErrorCode = "E104" // order given without policy
	ErrCutsInvalid       timeline.ErrorCode = "E105" // cuts not positive ascending
	ErrCutsMissing       timeline.ErrorCode = "E106" // projection requires cuts
	ErrCutsUnused        timeline.ErrorCode = "E107" // cuts without their projection
	ErrByTypeBare        timeline.ErrorCode = "E108" // bytype without projection
	ErrReservedColumn    timeline.ErrorCode = "E109" // output column name collision
	ErrWindowInvalid     timeline.ErrorCode = "E110" // bad episode duration window
)

// Data error codes (E150-E199).
const (
	ErrNoEpisodes      timeline.ErrorCode = "E150" // empty episode table
	ErrEpisodeOrder    timeline.ErrorCode = "E151" // episode stop before start
	ErrUnknownSubject  timeline.ErrorCode = "E152" // episode id without a window
	ErrWindowOrder     timeline.ErrorCode = "E153" // window exit before entry
	ErrDuplicateWindow timeline.ErrorCode = "E154" // two windows for one id
	ErrDoseNotNumeric  timeline.ErrorCode = "E155" // dose projection, non-numeric value
)

// Validate checks the spec for internal consistency. All problems are
// returned, not just the first, so a caller can fix a configuration in one
// round trip. An empty result means the spec is runnable.
func (s Spec) Validate() timeline.ConfigErrors {
	var errs timeline.ConfigErrors

	if s.Reference == nil {
		errs = append(errs, timeline.ConfigError{
			Code:    ErrMissingReference,
			Field:   "reference",
			Message: "a reference state is required",
		})
	}

	for _, adj := range []struct {
		name  string
		value int64
	}{
		{"grace", s.Grace},
		{"merge", s.Merge},
		{"lag", s.Lag},
		{"washout", s.Washout},
		{"fillgaps", s.Fillgaps},
		{"carryforward", s.Carryforward},
	} {
		if adj.value < 0 {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrNegativeDuration,
				Field:   adj.name,
				Message: fmt.Sprintf("must be non-negative, got %d", adj.value),
			})
		}
	}
	for _, v := range sortedGraceKeys(s.GraceByValue) {
		if s.GraceByValue[v] < 0 {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrNegativeDuration,
				Field:   "grace_by_value",
				Message: fmt.Sprintf("threshold for %s must be non-negative, got %d", timeline.Render(v), s.GraceByValue[v]),
			})
		}
	}

	switch {
	case s.Overlap == Priority && len(s.PriorityOrder) == 0:
		errs = append(errs, timeline.ConfigError{
			Code:    ErrPriorityMissing,
			Field:   "priority_order",
			Message: "priority policy requires a value ranking",
		})
	case s.Overlap != Priority && len(s.PriorityOrder) > 0:
		errs = append(errs, timeline.ConfigError{
			Code:    ErrPriorityUnused,
			Field:   "priority_order",
			Message: fmt.Sprintf("value ranking given but overlap policy is %s", s.Overlap),
		})
	}
	seen := make(map[string]bool, len(s.PriorityOrder))
	for _, v := range s.PriorityOrder {
		key := timeline.Render(v)
		if seen[key] {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrPriorityDuplicate,
				Field:   "priority_order",
				Message: fmt.Sprintf("value %s listed twice", key),
			})
		}
		seen[key] = true
	}

	errs = append(errs, s.validateCuts()...)

	if s.ByType && s.Projection == NoProjection {
		errs = append(errs, timeline.ConfigError{
			Code:    ErrByTypeBare,
			Field:   "bytype",
			Message: "bytype requires an active projection",
		})
	}

	errs = append(errs, s.validateColumns()...)

	if w := s.Window; w != nil {
		if w.Min < 0 || (w.Max != 0 && w.Max < w.Min) {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrWindowInvalid,
				Field:   "window",
				Message: fmt.Sprintf("need 0 <= min <= max, got [%d, %d]", w.Min, w.Max),
			})
		}
	}

	return errs
}

func (s Spec) validateCuts() timeline.ConfigErrors {
	var errs timeline.ConfigErrors

	check := func(field string, cuts []float64, needed, allowed bool) {
		if needed && len(cuts) == 0 {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrCutsMissing,
				Field:   field,
				Message: fmt.Sprintf("%s projection requires cutpoints", s.Projection),
			})
		}
		if !allowed && len(cuts) > 0 {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrCutsUnused,
				Field:   field,
				Message: fmt.Sprintf("cutpoints given but projection is %s", s.Projection),
			})
		}
		for i, c := range cuts {
			if c <= 0 || (i > 0 && cuts[i-1] >= c) {
				errs = append(errs, timeline.ConfigError{
					Code:    ErrCutsInvalid,
					Field:   field,
					Message: "cutpoints must be positive and strictly ascending",
				})
				break
			}
		}
	}

	check("duration_cuts", s.DurationCuts, s.Projection == Duration, s.Projection == Duration)
	check("recency_cuts", s.RecencyCuts, s.Projection == Recency, s.Projection == Recency)
	check("dose_cuts", s.DoseCuts, false, s.Projection == Dose)

	return errs
}

func (s Spec) validateColumns() timeline.ConfigErrors {
	var errs timeline.ConfigErrors

	names := map[string]string{"generate": s.generate()}
	if s.Overlap == Combine {
		names["combine_column"] = s.combineColumn()
	}
	for _, field := range []string{"generate", "combine_column"} {
		name, ok := names[field]
		if !ok {
			continue
		}
		if timeline.ReservedColumn(name) {
			errs = append(errs, timeline.ConfigError{
				Code:    ErrReservedColumn,
				Field:   field,
				Message: fmt.Sprintf("%q is a structural column name", name),
			})
		}
	}
	if s.Overlap == Combine && s.generate() == s.combineColumn() {
		errs = append(errs, timeline.ConfigError{
			Code:    ErrReservedColumn,
			Field:   "combine_column",
			Message: "indicator column collides with the state column",
		})
	}

	return errs
}

// validateInputs checks windows and episodes for data errors: empty episode
// input, inverted ranges, duplicate windows, and episode ids without a
// window. Data errors abort the call; the first found is returned.
func validateInputs(windows []timeline.StudyWindow, episodes []timeline.Episode) error {
	if len(episodes) == 0 {
		return &timeline.DataError{Code: ErrNoEpisodes, Message: "episode table is empty"}
	}

	known := make(map[string]bool, len(windows))
	for _, w := range windows {
		if w.Exit < w.Entry {
			return timeline.NewDataError(ErrWindowOrder, w.ID, "window exit %d before entry %d", w.Exit, w.Entry)
		}
		if known[w.ID] {
			return timeline.NewDataError(ErrDuplicateWindow, w.ID, "subject has more than one study window")
		}
		known[w.ID] = true
	}

	for _, ep := range episodes {
		if ep.Stop < ep.Start {
			return timeline.NewDataError(ErrEpisodeOrder, ep.ID, "episode stop %d before start %d", ep.Stop, ep.Start)
		}
		if !known[ep.ID] {
			return timeline.NewDataError(ErrUnknownSubject, ep.ID, "episode references a subject with no study window")
		}
	}

	return nil
}
