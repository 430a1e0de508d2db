package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-edge-lab/internal/domain"
)

func TestClassify_ReferenceCases(t *testing.T) {
	c := New(DefaultThresholds())

	tests := []struct {
		name string
		in   Input
		want domain.OrderflowState
		rule string
	}{
		{"long buildup", Input{PriceChangeBps: 0.5, OIDelta: 5, CVD: 80, CVDChange: 2}, domain.LongBuildup, "long_buildup"},
		{"short buildup", Input{PriceChangeBps: -0.5, OIDelta: 5, CVD: 80, CVDChange: -2}, domain.ShortBuildup, "short_buildup"},
		{"short covering", Input{PriceChangeBps: 0.3, OIDelta: -4, CVD: 50, CVDChange: 1}, domain.ShortCovering, "short_covering"},
		{"long liquidation", Input{PriceChangeBps: -0.3, OIDelta: -4, CVD: 50, CVDChange: -1}, domain.LongLiquidation, "long_liquidation"},
		{"absorption bottom", Input{PriceChangeBps: -0.1, OIDelta: 6, CVD: 50, CVDChange: 0.5}, domain.AbsorptionBottom, "absorption_bottom"},
		{"distribution top", Input{PriceChangeBps: 0.1, OIDelta: 6, CVD: -20, CVDChange: -0.5}, domain.DistributionTop, "distribution_top"},
		{"neutral chop", Input{PriceChangeBps: 0, OIDelta: 0.5, CVD: 80}, domain.NeutralChop, FallbackRule},
		{"weak long buildup", Input{PriceChangeBps: 0.5, OIDelta: 5, CVD: 0, CVDChange: 0.1}, domain.LongBuildup, "long_buildup_weak"},
		{"weak short buildup", Input{PriceChangeBps: -0.5, OIDelta: 5, CVD: 0, CVDChange: 0.1}, domain.ShortBuildup, "short_buildup_weak"},
		{"price down with bull cvd absorbs", Input{PriceChangeBps: -0.5, OIDelta: 5, CVD: 50, CVDChange: 0.1}, domain.AbsorptionBottom, "absorption_bottom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.in))
			assert.Equal(t, tt.rule, c.MatchedRule(tt.in))
		})
	}
}

func TestClassify_Delta1sTakesPrecedence(t *testing.T) {
	c := New(DefaultThresholds())

	// delta_1s bearish overrides a bullish cvd_change
	in := Input{PriceChangeBps: 0.5, OIDelta: 5, Delta1s: -3, CVDChange: 3}
	assert.Equal(t, domain.LongBuildup, c.Classify(in))
	assert.Equal(t, "long_buildup_weak", c.MatchedRule(in))

	// delta_1s below epsilon falls back to cvd_change
	in.Delta1s = 1e-12
	assert.Equal(t, "long_buildup", c.MatchedRule(in))
}

func TestClassify_NaNTreatedAsZero(t *testing.T) {
	c := New(DefaultThresholds())
	in := Input{PriceChangeBps: math.NaN(), OIDelta: math.Inf(1), CVD: math.NaN()}
	assert.Equal(t, domain.NeutralChop, c.Classify(in))
}

// gridInputs returns feature combinations straddling every threshold.
func gridInputs() []Input {
	prices := []float64{-1, -0.16, -0.15, -0.14, 0, 0.14, 0.15, 0.16, 1, math.NaN()}
	ois := []float64{-5, -2.01, -2, 0, 2, 2.01, 5}
	deltas := []float64{0, 1e-10, -0.6, -0.5, 0.5, 0.6}
	cvds := []float64{-20, -10.01, -10, 0, 10, 10.01, 20}
	cvdChanges := []float64{-1, -0.5, 0, 0.5, 1}

	var out []Input
	for _, p := range prices {
		for _, oi := range ois {
			for _, d := range deltas {
				for _, cvd := range cvds {
					for _, dc := range cvdChanges {
						out = append(out, Input{PriceChangeBps: p, OIDelta: oi, Delta1s: d, CVD: cvd, CVDChange: dc})
					}
				}
			}
		}
	}
	return out
}

func TestClassify_FirstMatchEqualsOverwrite_Exhaustive(t *testing.T) {
	c := New(DefaultThresholds())
	inputs := gridInputs()

	overwritten := c.overwrite(inputs)
	require.Len(t, overwritten, len(inputs))

	for i, in := range inputs {
		if got := c.Classify(in); got != overwritten[i] {
			t.Fatalf("input %+v: first-match %s, overwrite %s", in, got, overwritten[i])
		}
	}
}

func TestClassify_TotalAndExclusive(t *testing.T) {
	c := New(DefaultThresholds())
	for _, in := range gridInputs() {
		got := c.Classify(in)
		if !got.Valid() {
			t.Fatalf("input %+v: invalid state %q", in, got)
		}
	}
}

func TestClassifyTable_MatchesScalar(t *testing.T) {
	c := New(DefaultThresholds())

	// Alternate moves around the price thresholds with varied OI and flow
	table := &domain.FeatureTable{}
	price := 100.0
	steps := []float64{0.5, -0.5, 0.1, -0.1, 0, 2, -2, 0.16, -0.16}
	for i := 0; i < 500; i++ {
		price *= 1 + steps[i%len(steps)]/10000
		table.Rows = append(table.Rows, domain.FeatureRow{
			TimestampMs: int64(i) * 1000,
			Price:       price,
			OIDelta:     float64(i%11) - 5,
			Delta1s:     float64(i%5) - 2,
			CVD:         float64(i%41) - 20,
			CVDChange:   float64(i%3) - 1,
		})
	}

	batch := c.ClassifyTable(table)
	overwritten := c.ClassifyTableOverwrite(table)
	inputs := Inputs(table)

	require.Len(t, batch, table.Len())
	require.Len(t, overwritten, table.Len())
	for i := range inputs {
		scalar := c.Classify(inputs[i])
		assert.Equal(t, scalar, batch[i], "row %d", i)
		assert.Equal(t, scalar, overwritten[i], "row %d", i)
	}
}

func TestClassifyTable_RisingPriceIsLongBuildup(t *testing.T) {
	c := New(DefaultThresholds())

	table := &domain.FeatureTable{}
	price := 100.0
	for i := 0; i < 200; i++ {
		if i > 0 {
			price *= 1.0001 // +1 bp
		}
		table.Rows = append(table.Rows, domain.FeatureRow{
			TimestampMs: int64(i) * 1000,
			Price:       price,
			OIDelta:     5.0,
			Delta1s:     1.0,
		})
	}

	labels := c.ClassifyTable(table)

	// Row 0 has no previous price
	for i := 1; i < len(labels); i++ {
		if labels[i] != domain.LongBuildup {
			t.Fatalf("row %d: expected LONG_BUILDUP, got %s", i, labels[i])
		}
	}
}

func TestClassifyTable_Empty(t *testing.T) {
	c := New(DefaultThresholds())
	assert.Empty(t, c.ClassifyTable(&domain.FeatureTable{}))
	assert.Empty(t, c.ClassifyTableOverwrite(&domain.FeatureTable{}))
}

func TestDistribution(t *testing.T) {
	dist := Distribution([]domain.OrderflowState{domain.LongBuildup, domain.LongBuildup, domain.NeutralChop})

	assert.Len(t, dist, 7)
	assert.Equal(t, 2, dist[domain.LongBuildup])
	assert.Equal(t, 1, dist[domain.NeutralChop])
	assert.Equal(t, 0, dist[domain.DistributionTop])
}

func TestThresholds_Validate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.OIUp = -3
	assert.ErrorIs(t, bad.Validate(), ErrInvalidThresholds)
}
