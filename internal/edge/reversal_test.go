package edge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-edge-lab/internal/domain"
)

func TestAnalyzeReversals(t *testing.T) {
	e := newTestEvaluator(t)

	n := 40
	table := &domain.FeatureTable{Rows: make([]domain.FeatureRow, n)}
	states := make([]domain.OrderflowState, n)
	r60 := make([]float64, n)
	r300 := make([]float64, n)
	for i := 0; i < n; i++ {
		states[i] = domain.AbsorptionBottom
		if i < 30 {
			r60[i] = 2
		} else {
			r60[i] = -1
		}
		r300[i] = -1
	}
	// Only 4 defined returns at 900s
	r900 := []float64{1, 1, 1, 1}
	for len(r900) < n {
		r900 = append(r900, math.NaN())
	}

	frame := &Frame{
		Table:   table,
		States:  states,
		Returns: domain.ForwardReturnSet{60: r60, 300: r300, 900: r900},
	}

	results := e.AnalyzeReversals(frame, DefaultReversalTargets, domain.DefaultStateHorizons)

	require.Len(t, results, 2)

	bottom := results[0]
	assert.Equal(t, domain.AbsorptionBottom, bottom.Target.State)
	assert.Equal(t, 40, bottom.Count)
	assert.False(t, bottom.Insufficient)
	require.Len(t, bottom.Horizons, 2, "900s skipped with fewer than 5 samples")

	h60 := bottom.Horizons[0]
	assert.Equal(t, domain.Horizon(60), h60.Horizon)
	assert.Equal(t, 30, h60.Reversals)
	assert.InDelta(t, 75.0, h60.ReversalPct, 1e-9)
	assert.InDelta(t, 1.25, h60.MeanBps, 1e-9)
	assert.True(t, h60.Edge)

	h300 := bottom.Horizons[1]
	assert.Equal(t, 0, h300.Reversals)
	assert.False(t, h300.Edge)

	top := results[1]
	assert.Equal(t, domain.DistributionTop, top.Target.State)
	assert.Equal(t, 0, top.Count)
	assert.True(t, top.Insufficient)
	assert.Empty(t, top.Horizons)
}

func TestAnalyzeReversals_DirectionSign(t *testing.T) {
	e := newTestEvaluator(t)

	n := 30
	states := make([]domain.OrderflowState, n)
	r60 := make([]float64, n)
	for i := range states {
		states[i] = domain.DistributionTop
		r60[i] = -3
	}
	frame := &Frame{
		Table:   &domain.FeatureTable{Rows: make([]domain.FeatureRow, n)},
		States:  states,
		Returns: domain.ForwardReturnSet{60: r60},
	}

	results := e.AnalyzeReversals(frame, DefaultReversalTargets[1:], []domain.Horizon{60})

	require.Len(t, results, 1)
	require.Len(t, results[0].Horizons, 1)
	assert.Equal(t, 100.0, results[0].Horizons[0].ReversalPct)
	assert.Equal(t, 3.0, results[0].Horizons[0].MeanBps)
	assert.True(t, results[0].Horizons[0].Edge)
}
