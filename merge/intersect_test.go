package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/persontime/timeline"
)

type stubRunIDs struct{ id string }

func (g stubRunIDs) Generate() string { return g.id }

func table(columns []string, rows ...timeline.Interval) *timeline.Table {
	t := timeline.NewTable(columns...)
	t.Rows = rows
	return t
}

func row(id string, start, stop int64, vals ...timeline.Value) timeline.Interval {
	return timeline.Interval{ID: id, Start: start, Stop: stop, Values: vals}
}

func mustIntersect(t *testing.T, spec Spec, inputs ...*timeline.Table) *Result {
	t.Helper()
	x, err := New(spec, WithRunIDs(stubRunIDs{id: "run-test"}))
	require.NoError(t, err)
	res, err := x.Run(context.Background(), inputs...)
	require.NoError(t, err)
	for _, v := range timeline.CheckCanonical(res.Table) {
		t.Errorf("canonical violation: %s", v)
	}
	return res
}

func requireRows(t *testing.T, table *timeline.Table, want []timeline.Interval) {
	t.Helper()
	require.Len(t, table.Rows, len(want))
	for i, w := range want {
		got := table.Rows[i]
		assert.Equal(t, w.ID, got.ID, "row %d id", i)
		assert.Equal(t, w.Start, got.Start, "row %d start", i)
		assert.Equal(t, w.Stop, got.Stop, "row %d stop", i)
		require.Len(t, got.Values, len(w.Values), "row %d values", i)
		for j := range w.Values {
			assert.True(t, timeline.Equal(w.Values[j], got.Values[j]),
				"row %d col %d: want %s got %s", i, j,
				timeline.Render(w.Values[j]), timeline.Render(got.Values[j]))
		}
	}
}

// twoStates builds the canonical two-input fixture: exposure histories with
// partially overlapping coverage.
func twoStates() (*timeline.Table, *timeline.Table) {
	a := table([]string{"exposure"},
		row("1", 0, 50, timeline.Int(1)),
		row("1", 50, 100, timeline.Int(0)),
	)
	b := table([]string{"exposure"},
		row("1", 20, 80, timeline.Int(1)),
		row("1", 80, 120, timeline.Int(0)),
	)
	return a, b
}

func renameSpec() Spec {
	return Spec{Inputs: []InputSpec{
		{Rename: map[string]string{"exposure": "drug_a"}},
		{Rename: map[string]string{"exposure": "drug_b"}},
	}}
}

// =============================================================================
// Carry mode
// =============================================================================

func TestIntersector_Run_CoverageIntersection(t *testing.T) {
	a, b := twoStates()

	res := mustIntersect(t, renameSpec(), a, b)

	require.Equal(t, []string{"drug_a", "drug_b"}, res.Table.Columns)
	requireRows(t, res.Table, []timeline.Interval{
		row("1", 20, 50, timeline.Int(1), timeline.Int(1)),
		row("1", 50, 80, timeline.Int(0), timeline.Int(1)),
		row("1", 80, 100, timeline.Int(0), timeline.Int(0)),
	})
	assert.Equal(t, int64(80), res.Run.PersonTime, "covers [20,100): max entry to min exit")
}

func TestIntersector_Run_PrefixAvoidsCollision(t *testing.T) {
	a, b := twoStates()
	spec := Spec{Inputs: []InputSpec{
		{Prefix: "a_"},
		{Prefix: "b_"},
	}}

	res := mustIntersect(t, spec, a, b)

	assert.Equal(t, []string{"a_exposure", "b_exposure"}, res.Table.Columns)
}

func TestIntersector_Run_CollisionWithoutRenameFails(t *testing.T) {
	a, b := twoStates()

	x, err := New(Spec{})
	require.NoError(t, err)
	_, err = x.Run(context.Background(), a, b)
	require.Error(t, err)
	assert.True(t, timeline.IsConfigError(err))
	assert.Contains(t, err.Error(), "E202")
}

func TestIntersector_Run_ColumnSelection(t *testing.T) {
	a := table([]string{"exposure", "extra"},
		row("1", 0, 100, timeline.Int(1), timeline.String("x")),
	)
	b := table([]string{"exposure"},
		row("1", 0, 100, timeline.Int(2)),
	)
	spec := Spec{Inputs: []InputSpec{
		{Columns: []string{"exposure"}, Rename: map[string]string{"exposure": "a"}},
		{Rename: map[string]string{"exposure": "b"}},
	}}

	res := mustIntersect(t, spec, a, b)

	assert.Equal(t, []string{"a", "b"}, res.Table.Columns)
	requireRows(t, res.Table, []timeline.Interval{
		row("1", 0, 100, timeline.Int(1), timeline.Int(2)),
	})
}

func TestIntersector_Run_ThreeInputs(t *testing.T) {
	a := table([]string{"x"}, row("1", 0, 100, timeline.Int(1)))
	b := table([]string{"y"},
		row("1", 10, 60, timeline.Int(1)),
		row("1", 60, 90, timeline.Int(2)),
	)
	c := table([]string{"z"}, row("1", 30, 120, timeline.Int(5)))

	res := mustIntersect(t, Spec{}, a, b, c)

	requireRows(t, res.Table, []timeline.Interval{
		row("1", 30, 60, timeline.Int(1), timeline.Int(1), timeline.Int(5)),
		row("1", 60, 90, timeline.Int(1), timeline.Int(2), timeline.Int(5)),
	})
}

func TestIntersector_Run_DisjointCoverageYieldsNothing(t *testing.T) {
	a := table([]string{"x"}, row("1", 0, 30, timeline.Int(1)))
	b := table([]string{"y"}, row("1", 50, 100, timeline.Int(1)))

	res := mustIntersect(t, Spec{}, a, b)

	assert.Empty(t, res.Table.Rows)
	assert.Equal(t, int64(0), res.Run.PersonTime)
}

func TestIntersector_Run_TouchingCoverageDegenerateRow(t *testing.T) {
	a := table([]string{"x"}, row("1", 0, 50, timeline.Int(1)))
	b := table([]string{"y"}, row("1", 50, 100, timeline.Int(2)))

	res := mustIntersect(t, Spec{}, a, b)

	// A single shared instant: recorded, but contributes no person-time.
	requireRows(t, res.Table, []timeline.Interval{
		row("1", 50, 50, timeline.Int(1), timeline.Int(2)),
	})
	assert.Equal(t, int64(0), res.Run.PersonTime)
}

func TestIntersector_Run_MultipleSubjects(t *testing.T) {
	a := table([]string{"x"},
		row("1", 0, 100, timeline.Int(1)),
		row("2", 0, 50, timeline.Int(1)),
	)
	b := table([]string{"y"},
		row("1", 50, 150, timeline.Int(2)),
		row("2", 10, 40, timeline.Int(2)),
	)

	res := mustIntersect(t, Spec{}, a, b)

	requireRows(t, res.Table, []timeline.Interval{
		row("1", 50, 100, timeline.Int(1), timeline.Int(2)),
		row("2", 10, 40, timeline.Int(1), timeline.Int(2)),
	})
	assert.Equal(t, int64(2), res.Run.Subjects)
}

// =============================================================================
// Continuous rescaling
// =============================================================================

func TestIntersector_Run_ContinuousRescalesOnTruncation(t *testing.T) {
	a := table([]string{"cum"}, row("1", 0, 100, timeline.Float(100)))
	b := table([]string{"state"}, row("1", 0, 50, timeline.Int(1)))
	spec := Spec{Inputs: []InputSpec{
		{Continuous: []string{"cum"}},
		{},
	}}

	res := mustIntersect(t, spec, a, b)

	requireRows(t, res.Table, []timeline.Interval{
		row("1", 0, 50, timeline.Float(50), timeline.Int(1)),
	})
}

func TestIntersector_Run_ContinuousSplitConservesTotal(t *testing.T) {
	a := table([]string{"cum"}, row("1", 0, 100, timeline.Float(100)))
	b := table([]string{"state"},
		row("1", 0, 30, timeline.Int(1)),
		row("1", 30, 100, timeline.Int(0)),
	)
	spec := Spec{Inputs: []InputSpec{
		{Continuous: []string{"cum"}},
		{},
	}}

	res := mustIntersect(t, spec, a, b)

	requireRows(t, res.Table, []timeline.Interval{
		row("1", 0, 30, timeline.Float(30), timeline.Int(1)),
		row("1", 30, 100, timeline.Float(70), timeline.Int(0)),
	})
}

func TestIntersector_Run_SelfIntersectionIsExact(t *testing.T) {
	a := table([]string{"cum"},
		row("1", 0, 40, timeline.Float(12.5)),
		row("1", 40, 100, timeline.Float(80)),
	)
	b := table([]string{"cum"},
		row("1", 0, 40, timeline.Float(12.5)),
		row("1", 40, 100, timeline.Float(80)),
	)
	spec := Spec{Inputs: []InputSpec{
		{Rename: map[string]string{"cum": "left"}, Continuous: []string{"cum"}},
		{Rename: map[string]string{"cum": "right"}, Continuous: []string{"cum"}},
	}}

	res := mustIntersect(t, spec, a, b)

	// Identical boundaries mean no truncation anywhere: values round-trip
	// without even a multiply.
	requireRows(t, res.Table, []timeline.Interval{
		row("1", 0, 40, timeline.Float(12.5), timeline.Float(12.5)),
		row("1", 40, 100, timeline.Float(80), timeline.Float(80)),
	})
}

func TestIntersector_Run_MissingContinuousStaysMissing(t *testing.T) {
	a := table([]string{"cum"}, row("1", 0, 100, timeline.Missing{}))
	b := table([]string{"state"}, row("1", 20, 60, timeline.Int(1)))
	spec := Spec{Inputs: []InputSpec{
		{Continuous: []string{"cum"}},
		{},
	}}

	res := mustIntersect(t, spec, a, b)

	require.Len(t, res.Table.Rows, 1)
	assert.True(t, timeline.IsMissing(res.Table.Rows[0].Values[0]))
}

// =============================================================================
// Indicator mode
// =============================================================================

func indicatorSpec() Spec {
	return Spec{
		Indicator: &IndicatorSpec{},
		Inputs: []InputSpec{
			{Reference: timeline.Int(0)},
			{Reference: timeline.Int(0)},
		},
	}
}

func TestIntersector_Run_IndicatorJointExposure(t *testing.T) {
	a, b := twoStates()

	res := mustIntersect(t, indicatorSpec(), a, b)

	require.Equal(t, []string{"joint_exposure"}, res.Table.Columns)
	requireRows(t, res.Table, []timeline.Interval{
		row("1", 20, 50, timeline.Int(1)), // both exposed
		row("1", 50, 80, timeline.Int(0)), // a back at reference
		row("1", 80, 100, timeline.Int(0)),
	})
}

func TestIntersector_Run_IndicatorMissingPropagates(t *testing.T) {
	a := table([]string{"exposure"},
		row("1", 0, 50, timeline.Missing{}),
		row("1", 50, 100, timeline.Int(1)),
	)
	b := table([]string{"exposure"}, row("1", 0, 100, timeline.Int(1)))

	res := mustIntersect(t, indicatorSpec(), a, b)

	requireRows(t, res.Table, []timeline.Interval{
		row("1", 0, 50, timeline.Missing{}),
		row("1", 50, 100, timeline.Int(1)),
	})
}

func TestIntersector_Run_IndicatorCustomColumn(t *testing.T) {
	a, b := twoStates()
	spec := indicatorSpec()
	spec.Indicator.Column = "both_drugs"

	res := mustIntersect(t, spec, a, b)
	assert.Equal(t, []string{"both_drugs"}, res.Table.Columns)
}

// =============================================================================
// Strictness
// =============================================================================

func TestIntersector_Run_IDMismatchFailsStrict(t *testing.T) {
	a := table([]string{"x"},
		row("1", 0, 50, timeline.Int(1)),
		row("2", 0, 50, timeline.Int(1)),
	)
	b := table([]string{"y"}, row("1", 0, 50, timeline.Int(1)))

	x, err := New(Spec{})
	require.NoError(t, err)
	_, err = x.Run(context.Background(), a, b)
	require.Error(t, err)
	assert.True(t, timeline.IsDataError(err))
	assert.Contains(t, err.Error(), "E251")
	assert.Contains(t, err.Error(), "2")
}

func TestIntersector_Run_IDMismatchDroppedWithForce(t *testing.T) {
	a := table([]string{"x"},
		row("1", 0, 50, timeline.Int(1)),
		row("2", 0, 50, timeline.Int(1)),
	)
	b := table([]string{"y"}, row("1", 0, 50, timeline.Int(1)))
	spec := Spec{Force: true}

	res := mustIntersect(t, spec, a, b)

	requireRows(t, res.Table, []timeline.Interval{
		row("1", 0, 50, timeline.Int(1), timeline.Int(1)),
	})
	require.Len(t, res.Run.Warnings, 1)
	assert.Contains(t, res.Run.Warnings[0], "1 ids missing")
}

func TestIntersector_Run_NonCanonicalInputFailsStrict(t *testing.T) {
	a := table([]string{"x"},
		row("1", 0, 50, timeline.Int(1)),
		row("1", 40, 80, timeline.Int(2)), // overlaps
	)
	b := table([]string{"y"}, row("1", 0, 80, timeline.Int(1)))

	x, err := New(Spec{})
	require.NoError(t, err)
	_, err = x.Run(context.Background(), a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E250")
}

func TestIntersector_Run_NonCanonicalToleratedWithForce(t *testing.T) {
	a := table([]string{"x"},
		row("1", 0, 50, timeline.Int(1)),
		row("1", 40, 80, timeline.Int(2)), // overlaps by ten days
	)
	b := table([]string{"y"}, row("1", 0, 80, timeline.Int(1)))
	spec := Spec{Force: true}

	res := mustIntersect(t, spec, a, b)

	// The sweep cuts at the overlapped boundaries; the later start wins the
	// shared days.
	requireRows(t, res.Table, []timeline.Interval{
		row("1", 0, 40, timeline.Int(1), timeline.Int(1)),
		row("1", 40, 50, timeline.Int(2), timeline.Int(1)),
		row("1", 50, 80, timeline.Int(2), timeline.Int(1)),
	})
	require.Len(t, res.Run.Warnings, 2)
	assert.Contains(t, res.Run.Warnings[0], "1 canonical violations tolerated")
	assert.Contains(t, res.Run.Warnings[1], "CROSS")
	assert.Contains(t, res.Run.Warnings[1], "10 days shared")
}

func TestIntersector_Run_EmptyInputAlwaysFails(t *testing.T) {
	a := table([]string{"x"})
	b := table([]string{"y"}, row("1", 0, 80, timeline.Int(1)))

	x, err := New(Spec{Force: true})
	require.NoError(t, err)
	_, err = x.Run(context.Background(), a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E252")
}

func TestIntersector_Run_FewerThanTwoInputs(t *testing.T) {
	a := table([]string{"x"}, row("1", 0, 80, timeline.Int(1)))

	x, err := New(Spec{})
	require.NoError(t, err)
	_, err = x.Run(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E200")
}

func TestIntersector_Run_UnknownColumnFails(t *testing.T) {
	a, b := twoStates()
	spec := Spec{Inputs: []InputSpec{
		{Columns: []string{"dose"}},
		{},
	}}

	x, err := New(spec)
	require.NoError(t, err)
	_, err = x.Run(context.Background(), a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E201")
}

func TestIntersector_Run_InputSpecCountMismatch(t *testing.T) {
	a, b := twoStates()
	spec := Spec{Inputs: []InputSpec{{}}}

	x, err := New(spec)
	require.NoError(t, err)
	_, err = x.Run(context.Background(), a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E205")
}

// =============================================================================
// Provenance
// =============================================================================

func TestIntersector_Run_RunInfo(t *testing.T) {
	a, b := twoStates()
	spec := renameSpec()

	res := mustIntersect(t, spec, a, b)

	assert.Equal(t, "run-test", res.Run.RunID)
	assert.Equal(t, spec.Fingerprint(), res.Run.Fingerprint)
	assert.Equal(t, int64(1), res.Run.Subjects)
	assert.Equal(t, int64(3), res.Run.Rows)
}

func TestNew_IndicatorWithoutReferences(t *testing.T) {
	_, err := New(Spec{Indicator: &IndicatorSpec{}})
	require.Error(t, err)
	assert.True(t, timeline.IsConfigError(err))
	assert.Contains(t, err.Error(), "E203")
}
