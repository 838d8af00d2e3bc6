package expose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/persontime/timeline"
)

func seg(lo, hi int64, v timeline.Value) segment {
	return segment{lo: lo, hi: hi, state: v}
}

func TestBridgeSame_GapAtThresholdBridges(t *testing.T) {
	got := bridgeSame([]segment{
		seg(0, 10, timeline.Int(1)),
		seg(15, 25, timeline.Int(1)),
	}, func(timeline.Value) int64 { return 5 })

	require.Len(t, got, 1)
	assert.Equal(t, int64(0), got[0].lo)
	assert.Equal(t, int64(25), got[0].hi)
}

func TestBridgeSame_GapPastThresholdStays(t *testing.T) {
	got := bridgeSame([]segment{
		seg(0, 10, timeline.Int(1)),
		seg(16, 25, timeline.Int(1)),
	}, func(timeline.Value) int64 { return 5 })

	require.Len(t, got, 2)
}

func TestBridgeSame_DoseSurvivesBridging(t *testing.T) {
	a := seg(0, 10, timeline.Int(1))
	a.dose = 3
	b := seg(12, 20, timeline.Int(1))
	b.dose = 4

	got := bridgeSame([]segment{a, b}, func(timeline.Value) int64 { return 2 })

	require.Len(t, got, 1)
	assert.InDelta(t, 7.0, got[0].dose, 1e-9)
}

func TestBridgeSame_ChainsAcrossRepeatedGaps(t *testing.T) {
	got := bridgeSame([]segment{
		seg(0, 10, timeline.Int(1)),
		seg(12, 20, timeline.Int(1)),
		seg(22, 30, timeline.Int(1)),
	}, func(timeline.Value) int64 { return 2 })

	require.Len(t, got, 1)
	assert.Equal(t, int64(30), got[0].hi)
}

func TestReferenceFill_TilesWindowExactly(t *testing.T) {
	s := baseSpec()
	w := timeline.StudyWindow{ID: "1", Entry: 0, Exit: 100}

	got := s.referenceFill([]segment{
		seg(10, 20, timeline.Int(1)),
		seg(50, 60, timeline.Int(2)),
	}, w)

	require.Len(t, got, 5)
	var total int64
	for i, g := range got {
		total += g.days()
		if i > 0 {
			assert.Equal(t, got[i-1].hi, g.lo, "fill must leave no seams")
		}
	}
	assert.Equal(t, int64(100), total)
	assert.True(t, timeline.Equal(timeline.Int(0), got[0].state))
	assert.True(t, timeline.Equal(timeline.Int(0), got[2].state))
	assert.True(t, timeline.Equal(timeline.Int(0), got[4].state))
}

func TestReferenceFill_EmptyInputIsOneReferenceRow(t *testing.T) {
	s := baseSpec()
	w := timeline.StudyWindow{ID: "1", Entry: 30, Exit: 90}

	got := s.referenceFill(nil, w)

	require.Len(t, got, 1)
	assert.Equal(t, int64(30), got[0].lo)
	assert.Equal(t, int64(90), got[0].hi)
}

func TestCollapse_RequiresTouchingAndEqualState(t *testing.T) {
	got := collapse([]segment{
		seg(0, 10, timeline.Int(1)),
		seg(10, 20, timeline.Int(1)), // touching, same state: merges
		seg(20, 30, timeline.Int(2)), // state change: stays
		seg(35, 40, timeline.Int(2)), // gap: stays
	})

	require.Len(t, got, 3)
	assert.Equal(t, int64(20), got[0].hi)
}

func TestCollapse_CoIndicatorBlocksMerge(t *testing.T) {
	a := seg(0, 10, timeline.Int(1))
	b := seg(10, 20, timeline.Int(1))
	b.co = true

	got := collapse([]segment{a, b})
	require.Len(t, got, 2)
}

func TestCarryforwardExtend_TerminalGapIncluded(t *testing.T) {
	s := baseSpec()
	s.Carryforward = 10

	got := s.carryforwardExtend([]segment{seg(0, 10, timeline.Int(1))}, 20)

	require.Len(t, got, 1)
	assert.Equal(t, int64(20), got[0].hi)
}

func TestCarryforwardExtend_NeverPartial(t *testing.T) {
	s := baseSpec()
	s.Carryforward = 9 // terminal gap is 10

	got := s.carryforwardExtend([]segment{seg(0, 10, timeline.Int(1))}, 20)

	assert.Equal(t, int64(10), got[0].hi, "a gap larger than the allowance is left whole")
}

func TestFillgapsExtend_OnlyTerminalSegmentMoves(t *testing.T) {
	s := baseSpec()
	s.Fillgaps = 15

	got := s.fillgapsExtend([]segment{
		seg(0, 10, timeline.Int(1)),
		seg(40, 50, timeline.Int(2)),
	}, 100)

	assert.Equal(t, int64(10), got[0].hi)
	assert.Equal(t, int64(65), got[1].hi)
}
