package growth

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

func seedAdjusted(t *testing.T, st store.Store, attr model.Attribution, segs []model.SegmentPoint, stages []model.StagePoint) {
	t.Helper()
	key := store.SeriesKey{Attribution: attr}
	require.NoError(t, st.ReplaceSegmentSeries(context.Background(), key, segs))
	require.NoError(t, st.ReplaceStageSeries(context.Background(), key, stages))
}

func TestExtender_Extend(t *testing.T) {
	st := newTestStore(t)
	tax := testTaxonomy(t)
	ctx := context.Background()

	seedAdjusted(t, st, model.AttributionBEA,
		[]model.SegmentPoint{
			{SegmentID: 7, Segment: "7. Core Automotive", Year: 2023, Employment: 100000, ValueType: model.ValueObserved},
			{SegmentID: 7, Segment: "7. Core Automotive", Year: 2024, Employment: 102000, ValueType: model.ValueObserved},
			{SegmentID: 1, Segment: "1. Materials & Processing", Year: 2024, Employment: 5000, ValueType: model.ValueObserved},
		},
		[]model.StagePoint{
			{Stage: taxonomy.StageOEM, Year: 2023, Employment: 100000, ValueType: model.ValueObserved},
			{Stage: taxonomy.StageOEM, Year: 2024, Employment: 102000, ValueType: model.ValueObserved},
			{Stage: taxonomy.StageUpstream, Year: 2024, Employment: 5000, ValueType: model.ValueObserved},
		})

	// Segment 1 and Upstream have no staged rates at all; 2026 is an
	// explicit gap for segment 7 and OEM.
	require.NoError(t, st.ReplaceGrowthRates(ctx, model.GrowthMoody,
		[]model.SegmentRate{
			{Source: model.GrowthMoody, SegmentID: 7, Year: 2025, Pct: f64(2.0)},
			{Source: model.GrowthMoody, SegmentID: 7, Year: 2026, Pct: nil},
			{Source: model.GrowthMoody, SegmentID: 7, Year: 2027, Pct: f64(-1.0)},
		},
		[]model.StageRate{
			{Source: model.GrowthMoody, Stage: taxonomy.StageOEM, Year: 2025, Pct: f64(2.0)},
			{Source: model.GrowthMoody, Stage: taxonomy.StageOEM, Year: 2026, Pct: nil},
			{Source: model.GrowthMoody, Stage: taxonomy.StageOEM, Year: 2027, Pct: f64(-1.0)},
		}))

	res, err := New(st, tax, 2024, 2027).Extend(ctx, model.AttributionBEA, model.GrowthMoody)
	require.NoError(t, err)

	assert.Equal(t, model.AttributionBEA, res.Attribution)
	assert.Equal(t, model.GrowthMoody, res.Growth)
	assert.Equal(t, 2, res.Segments)
	assert.Equal(t, 2, res.Stages)
	assert.Equal(t, 0, res.Unanchored)
	assert.Equal(t, 8, res.MissingRates) // 7/2026, OEM/2026, and all of segment 1 / Upstream
	assert.Equal(t, 9, res.SegmentPoints)
	assert.Equal(t, 9, res.StagePoints)

	pts, err := st.SegmentSeries(ctx, store.SeriesKey{Attribution: model.AttributionBEA, Growth: model.GrowthMoody})
	require.NoError(t, err)
	require.Len(t, pts, 9)
	byKey := make(map[string]model.SegmentPoint, len(pts))
	for _, p := range pts {
		byKey[fmt.Sprintf("%d/%d", p.SegmentID, p.Year)] = p
	}

	obs := byKey["7/2024"]
	assert.Equal(t, model.ValueObserved, obs.ValueType)
	assert.Empty(t, obs.Source)
	assert.Nil(t, obs.AppliedYoYPct)

	p25 := byKey["7/2025"]
	assert.InDelta(t, 104040.0, p25.Employment, 1e-9)
	assert.Equal(t, model.ValueForecast, p25.ValueType)
	assert.Equal(t, model.GrowthMoody, p25.Source)
	require.NotNil(t, p25.AppliedYoYPct)
	assert.InDelta(t, 2.0, *p25.AppliedYoYPct, 1e-9)

	p26 := byKey["7/2026"]
	assert.InDelta(t, 104040.0, p26.Employment, 1e-9) // held flat across the gap
	assert.Nil(t, p26.AppliedYoYPct)

	p27 := byKey["7/2027"]
	assert.InDelta(t, 102999.6, p27.Employment, 1e-6)
	require.NotNil(t, p27.AppliedYoYPct)
	assert.InDelta(t, -1.0, *p27.AppliedYoYPct, 1e-9)

	for _, y := range []int{2025, 2026, 2027} {
		p := byKey[fmt.Sprintf("1/%d", y)]
		assert.InDelta(t, 5000.0, p.Employment, 1e-9, "segment 1 holds flat with no rates")
		assert.Equal(t, model.ValueForecast, p.ValueType)
		assert.Nil(t, p.AppliedYoYPct)
	}

	stg, err := st.StageSeries(ctx, store.SeriesKey{Attribution: model.AttributionBEA, Growth: model.GrowthMoody})
	require.NoError(t, err)
	require.Len(t, stg, 9)
	byStage := make(map[string]model.StagePoint, len(stg))
	for _, p := range stg {
		byStage[fmt.Sprintf("%s/%d", p.Stage, p.Year)] = p
	}
	assert.InDelta(t, 104040.0, byStage["OEM/2025"].Employment, 1e-9)
	assert.InDelta(t, 104040.0, byStage["OEM/2026"].Employment, 1e-9)
	assert.InDelta(t, 102999.6, byStage["OEM/2027"].Employment, 1e-6)
	assert.InDelta(t, 5000.0, byStage["Upstream/2027"].Employment, 1e-9)
}

func TestExtender_Extend_PublishedLevelWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedAdjusted(t, st, model.AttributionBEA,
		[]model.SegmentPoint{
			{SegmentID: 7, Segment: "7. Core Automotive", Year: 2024, Employment: 100000, ValueType: model.ValueObserved},
			{SegmentID: 7, Segment: "7. Core Automotive", Year: 2025, Employment: 101000, ValueType: model.ValueObserved},
		},
		nil)

	// A published 2025 level outranks the 50% rate, and 2026 compounds
	// from the published level.
	require.NoError(t, st.ReplaceGrowthRates(ctx, model.GrowthMoody,
		[]model.SegmentRate{
			{Source: model.GrowthMoody, SegmentID: 7, Year: 2025, Pct: f64(50.0)},
			{Source: model.GrowthMoody, SegmentID: 7, Year: 2026, Pct: f64(1.0)},
		},
		nil))

	res, err := New(st, testTaxonomy(t), 2024, 2026).Extend(ctx, model.AttributionBEA, model.GrowthMoody)
	require.NoError(t, err)
	assert.Equal(t, 3, res.SegmentPoints)

	pts, err := st.SegmentSeries(ctx, store.SeriesKey{Attribution: model.AttributionBEA, Growth: model.GrowthMoody})
	require.NoError(t, err)
	require.Len(t, pts, 3)

	byYear := make(map[int]model.SegmentPoint, len(pts))
	for _, p := range pts {
		byYear[p.Year] = p
	}
	assert.Equal(t, model.ValueObserved, byYear[2025].ValueType)
	assert.InDelta(t, 101000.0, byYear[2025].Employment, 1e-9)
	assert.Equal(t, model.ValueForecast, byYear[2026].ValueType)
	assert.InDelta(t, 102010.0, byYear[2026].Employment, 1e-9)
}

func TestExtender_Extend_Unanchored(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Observed data stops before the base year, so there is no level to
	// extend from.
	seedAdjusted(t, st, model.AttributionBEA,
		[]model.SegmentPoint{
			{SegmentID: 3, Segment: "3. Forging & Foundries", Year: 2023, Employment: 6800, ValueType: model.ValueObserved},
		},
		[]model.StagePoint{
			{Stage: taxonomy.StageUpstream, Year: 2023, Employment: 6800, ValueType: model.ValueObserved},
		})
	require.NoError(t, st.ReplaceGrowthRates(ctx, model.GrowthMoody,
		[]model.SegmentRate{{Source: model.GrowthMoody, SegmentID: 3, Year: 2025, Pct: f64(2.0)}},
		[]model.StageRate{{Source: model.GrowthMoody, Stage: taxonomy.StageUpstream, Year: 2025, Pct: f64(2.0)}}))

	res, err := New(st, testTaxonomy(t), 2024, 2026).Extend(ctx, model.AttributionBEA, model.GrowthMoody)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Segments)
	assert.Equal(t, 2, res.Unanchored)
	assert.Equal(t, 1, res.SegmentPoints)
	assert.Equal(t, 1, res.StagePoints)

	pts, err := st.SegmentSeries(ctx, store.SeriesKey{Attribution: model.AttributionBEA, Growth: model.GrowthMoody})
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, model.ValueObserved, pts[0].ValueType)
}

func TestExtender_Extend_NoAdjusted(t *testing.T) {
	st := newTestStore(t)

	_, err := New(st, testTaxonomy(t), 2024, 2034).Extend(context.Background(), model.AttributionBEA, model.GrowthMoody)
	require.Error(t, err)
	assert.ErrorContains(t, err, "run attribution first")
}

func TestExtender_Extend_NoRates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedAdjusted(t, st, model.AttributionLightcast,
		[]model.SegmentPoint{
			{SegmentID: 7, Segment: "7. Core Automotive", Year: 2024, Employment: 100000, ValueType: model.ValueObserved},
		},
		nil)

	_, err := New(st, testTaxonomy(t), 2024, 2034).Extend(ctx, model.AttributionLightcast, model.GrowthBLS)
	require.Error(t, err)
	assert.ErrorContains(t, err, "build rates first")
}
