package protocol

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/persontime/event"
	"github.com/roach88/persontime/expose"
	"github.com/roach88/persontime/timeline"
)

func compile(t *testing.T, src string) (*Protocol, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v)
}

func mustCompile(t *testing.T, src string) *Protocol {
	t.Helper()
	p, err := compile(t, src)
	require.NoError(t, err)
	return p
}

// findPath asserts that err holds a CompileError with the given code at the
// given protocol path, and returns it.
func findPath(t *testing.T, err error, code timeline.ErrorCode, path string) *CompileError {
	t.Helper()
	var errs CompileErrors
	require.ErrorAs(t, err, &errs)
	for _, e := range errs {
		if e.Code == code && e.Path == path {
			return e
		}
	}
	t.Fatalf("no [%s] at %s in %v", code, path, err)
	return nil
}

// ===========================================================================
// Whole protocols
// ===========================================================================

func TestCompile_FullProtocol(t *testing.T) {
	p := mustCompile(t, `
		protocol: {
			name: "statin_switch"
			exposure: {
				generate:  "statin"
				reference: 0
				overlap:   "priority"
				priority: [2, 1]
				grace: 14
				grace_by_value: {"2": 30}
				lag:        7
				projection: "duration"
				duration_cuts: [30, 180]
				window: {min: 1}
				switching: true
				expand:    "years"
			}
			merge: {
				inputs: [
					{reference: 0, prefix: "a_"},
					{reference: 0, columns: ["exposure"], rename: {exposure: "statin"}},
				]
			}
			event: {
				semantics: "recurring"
				continuous: ["dose"]
				time_column: "followup"
				time_unit:   "years"
			}
		}
	`)

	assert.Equal(t, "statin_switch", p.Name)

	require.NotNil(t, p.Exposure)
	assert.Equal(t, "statin", p.Exposure.Generate)
	assert.Equal(t, timeline.Int(0), p.Exposure.Reference)
	assert.Equal(t, expose.Priority, p.Exposure.Overlap)
	assert.Equal(t, []timeline.Value{timeline.Int(2), timeline.Int(1)}, p.Exposure.PriorityOrder)
	assert.Equal(t, int64(14), p.Exposure.Grace)
	assert.Equal(t, int64(30), p.Exposure.GraceByValue[timeline.Int(2)])
	assert.Equal(t, int64(7), p.Exposure.Lag)
	assert.Equal(t, expose.Duration, p.Exposure.Projection)
	assert.Equal(t, []float64{30, 180}, p.Exposure.DurationCuts)
	require.NotNil(t, p.Exposure.Window)
	assert.Equal(t, int64(1), p.Exposure.Window.Min)
	assert.True(t, p.Exposure.Switching)
	assert.Equal(t, timeline.ExpandYears, p.Exposure.ExpandUnit)

	require.NotNil(t, p.Merge)
	require.Len(t, p.Merge.Inputs, 2)
	assert.Equal(t, "a_", p.Merge.Inputs[0].Prefix)
	assert.Equal(t, timeline.Int(0), p.Merge.Inputs[0].Reference)
	assert.Equal(t, []string{"exposure"}, p.Merge.Inputs[1].Columns)
	assert.Equal(t, map[string]string{"exposure": "statin"}, p.Merge.Inputs[1].Rename)

	require.NotNil(t, p.Event)
	assert.Equal(t, event.Recurring, p.Event.Semantics)
	assert.Equal(t, []string{"dose"}, p.Event.Continuous)
	assert.Equal(t, "followup", p.Event.TimeColumn)
	assert.Equal(t, timeline.UnitYears, p.Event.TimeUnit)
}

func TestCompile_ExposureDefaults(t *testing.T) {
	p := mustCompile(t, `
		protocol: {
			name: "minimal"
			exposure: {reference: "none"}
		}
	`)

	require.NotNil(t, p.Exposure)
	assert.Equal(t, timeline.String("none"), p.Exposure.Reference)
	assert.Empty(t, p.Exposure.Generate)
	assert.Equal(t, expose.Layer, p.Exposure.Overlap)
	assert.Equal(t, expose.NoProjection, p.Exposure.Projection)
	assert.Equal(t, timeline.UnitDays, p.Exposure.Unit)
	assert.Zero(t, p.Exposure.Grace)
	assert.Nil(t, p.Exposure.Window)
	assert.Equal(t, timeline.NoExpand, p.Exposure.ExpandUnit)
	assert.Nil(t, p.Merge)
	assert.Nil(t, p.Event)
}

func TestCompile_StateValueKinds(t *testing.T) {
	p := mustCompile(t, `
		protocol: {
			name: "kinds"
			exposure: {
				reference: null
				grace_by_value: {"1": 10, "0.5": 20, drug_b: 30}
			}
		}
	`)

	assert.Equal(t, timeline.Missing{}, p.Exposure.Reference)
	assert.Equal(t, int64(10), p.Exposure.GraceByValue[timeline.Int(1)])
	assert.Equal(t, int64(20), p.Exposure.GraceByValue[timeline.Float(0.5)])
	assert.Equal(t, int64(30), p.Exposure.GraceByValue[timeline.String("drug_b")])
}

func TestCompile_MergeIndicator(t *testing.T) {
	p := mustCompile(t, `
		protocol: {
			name: "joint"
			merge: {
				force: true
				indicator: {column: "both_exposed"}
				inputs: [
					{reference: 0},
					{reference: "none"},
				]
			}
		}
	`)

	require.NotNil(t, p.Merge)
	assert.True(t, p.Merge.Force)
	require.NotNil(t, p.Merge.Indicator)
	assert.Equal(t, "both_exposed", p.Merge.Indicator.Column)
	assert.Equal(t, timeline.String("none"), p.Merge.Inputs[1].Reference)
}

// ===========================================================================
// Compile errors
// ===========================================================================

func TestCompile_MissingName(t *testing.T) {
	_, err := compile(t, `protocol: {event: {}}`)
	findPath(t, err, ErrMissing, "protocol.name")
}

func TestCompile_NoStages(t *testing.T) {
	_, err := compile(t, `protocol: {name: "empty"}`)
	e := findPath(t, err, ErrMissing, "protocol")
	assert.Contains(t, e.Message, "no stages")
}

func TestCompile_NoProtocolBlock(t *testing.T) {
	_, err := compile(t, `other: {name: "x"}`)
	var errs CompileErrors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissing, errs[0].Code)
	assert.Contains(t, errs[0].Message, "no protocol block")
}

func TestCompile_UnknownFieldRejected(t *testing.T) {
	_, err := compile(t, `
		protocol: {
			name: "typo"
			exposure: {reference: 0, graze: 30}
		}
	`)
	e := findPath(t, err, ErrField, "protocol.exposure.graze")
	assert.Contains(t, e.Message, "unknown field")
}

func TestCompile_WrongFieldType(t *testing.T) {
	_, err := compile(t, `
		protocol: {
			name: "types"
			exposure: {reference: 0, generate: 5, grace: "two weeks"}
		}
	`)
	findPath(t, err, ErrField, "protocol.exposure.generate")
	findPath(t, err, ErrField, "protocol.exposure.grace")
}

func TestCompile_UnknownEnum(t *testing.T) {
	_, err := compile(t, `
		protocol: {
			name: "enums"
			exposure: {reference: 0, overlap: "stack"}
			event: {semantics: "terminal"}
		}
	`)
	e := findPath(t, err, ErrEnum, "protocol.exposure.overlap")
	assert.Contains(t, e.Message, "stack")
	findPath(t, err, ErrEnum, "protocol.event.semantics")
}

func TestCompile_StageValidationSurfaces(t *testing.T) {
	_, err := compile(t, `
		protocol: {
			name: "invalid"
			exposure: {reference: 0, bytype: true, grace: -5}
		}
	`)

	e := findPath(t, err, "E108", "protocol.exposure.bytype")
	assert.Contains(t, e.Message, "projection")
	findPath(t, err, "E101", "protocol.exposure.grace")
}

func TestCompile_CollectsAcrossStages(t *testing.T) {
	_, err := compile(t, `
		protocol: {
			name: "broken"
			exposure: {reference: 0, projection: "sideways"}
			event: {generate: "id"}
		}
	`)

	findPath(t, err, ErrEnum, "protocol.exposure.projection")
	findPath(t, err, "E300", "protocol.event.generate")
}

func TestCompileError_Format(t *testing.T) {
	e := &CompileError{Code: ErrEnum, Path: "protocol.exposure.unit", Message: `unknown unit "fortnights"`}
	assert.Equal(t, `[E505] protocol.exposure.unit: unknown unit "fortnights"`, e.Error())
}

// ===========================================================================
// Fingerprint
// ===========================================================================

func TestProtocol_Fingerprint_SensitiveToStages(t *testing.T) {
	base := `
		protocol: {
			name: "fp"
			exposure: {reference: 0, grace: 14}
		}
	`
	p1 := mustCompile(t, base)
	p2 := mustCompile(t, base)
	assert.Equal(t, p1.Fingerprint(), p2.Fingerprint())
	assert.Len(t, p1.Fingerprint(), 64)

	variants := []string{
		`protocol: {name: "fp2", exposure: {reference: 0, grace: 14}}`,
		`protocol: {name: "fp", exposure: {reference: 0, grace: 15}}`,
		`protocol: {name: "fp", exposure: {reference: 0, grace: 14}, event: {}}`,
	}
	for i, src := range variants {
		v := mustCompile(t, src)
		assert.NotEqual(t, p1.Fingerprint(), v.Fingerprint(), "variant %d", i)
	}
}
