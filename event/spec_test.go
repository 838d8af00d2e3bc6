package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/persontime/timeline"
)

func findCode(t *testing.T, errs timeline.ConfigErrors, code timeline.ErrorCode) {
	t.Helper()
	for _, e := range errs {
		if e.Code == code {
			return
		}
	}
	t.Errorf("no %s among %v", code, errs)
}

// =============================================================================
// Validation
// =============================================================================

func TestSpec_Validate_ZeroValuePasses(t *testing.T) {
	assert.Empty(t, Spec{}.Validate())
}

func TestSpec_Validate_ReservedGenerate(t *testing.T) {
	findCode(t, Spec{Generate: "stop"}.Validate(), ErrReservedColumn)
}

func TestSpec_Validate_UnknownSemantics(t *testing.T) {
	findCode(t, Spec{Semantics: Semantics(9)}.Validate(), ErrSemantics)
}

func TestSpec_Validate_CompetingCodes(t *testing.T) {
	findCode(t, Spec{CompetingCodes: []int64{0}}.Validate(), ErrCompetingCode)
	findCode(t, Spec{CompetingCodes: []int64{1}}.Validate(), ErrCompetingCode)
	findCode(t, Spec{CompetingCodes: []int64{-2}}.Validate(), ErrCompetingCode)
	findCode(t, Spec{CompetingCodes: []int64{2, 2}}.Validate(), ErrCompetingCode)
	assert.Empty(t, Spec{CompetingCodes: []int64{7, 9}}.Validate())
}

func TestSpec_Validate_TimeColumn(t *testing.T) {
	findCode(t, Spec{TimeUnit: timeline.UnitYears}.Validate(), ErrUnitUnused)
	findCode(t, Spec{TimeColumn: "start"}.Validate(), ErrReservedColumn)
	findCode(t, Spec{TimeColumn: "failure"}.Validate(), ErrColumnCollision)
	findCode(t, Spec{TimeColumn: "t", TimeUnit: timeline.Unit(42)}.Validate(), ErrUnit)
	assert.Empty(t, Spec{TimeColumn: "followup", TimeUnit: timeline.UnitMonths}.Validate())
}

func TestSpec_Validate_CollectsAllProblems(t *testing.T) {
	spec := Spec{
		Generate:       "id",
		Semantics:      Semantics(-1),
		CompetingCodes: []int64{0},
		TimeUnit:       timeline.UnitYears,
	}
	errs := spec.Validate()
	require.GreaterOrEqual(t, len(errs), 4)
}

// =============================================================================
// Enums and fingerprint
// =============================================================================

func TestParseSemantics(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Semantics
	}{
		{"", Single},
		{"single", Single},
		{"recurring", Recurring},
	} {
		got, err := ParseSemantics(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	_, err := ParseSemantics("terminal")
	require.Error(t, err)
}

func TestSemantics_String(t *testing.T) {
	assert.Equal(t, "single", Single.String())
	assert.Equal(t, "recurring", Recurring.String())
}

func TestSpec_Fingerprint_SensitiveToEveryKnob(t *testing.T) {
	base := Spec{}
	variants := []Spec{
		{Generate: "outcome"},
		{Semantics: Recurring},
		{Continuous: []string{"cum"}},
		{CompetingCodes: []int64{5}},
		{TimeColumn: "followup"},
		{TimeColumn: "followup", TimeUnit: timeline.UnitYears},
	}

	fp := base.Fingerprint()
	require.Len(t, fp, 64)
	seen := map[string]int{fp: -1}
	for i, v := range variants {
		got := v.Fingerprint()
		if prev, dup := seen[got]; dup {
			t.Errorf("variant %d collides with %d", i, prev)
		}
		seen[got] = i
	}
}
