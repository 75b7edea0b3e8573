package aggregate

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.New([]taxonomy.Assignment{
		{NAICS: "3311", Title: "Iron & Steel Mills", SegmentID: 1, Segment: "Materials & Processing", Stage: taxonomy.StageUpstream},
		{NAICS: "3315", Title: "Foundries", SegmentID: 3, Segment: "Forging & Foundries", Stage: taxonomy.StageUpstream},
		{NAICS: "3361", Title: "Motor Vehicle Mfg", SegmentID: 7, Segment: "Core Automotive", Stage: taxonomy.StageOEM},
		{NAICS: "3363", Title: "Motor Vehicle Parts Mfg", SegmentID: 7, Segment: "Core Automotive", Stage: taxonomy.StageOEM},
		{NAICS: "8111", Title: "Automotive Repair", SegmentID: 9, Segment: "Dealers, Maintenance, & Repair", Stage: taxonomy.StageDownstream},
	})
	require.NoError(t, err)
	return tax
}

func f64(v float64) *float64 { return &v }

func TestAggregator_Run(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceIndustryEmployment(ctx, []model.IndustryEmployment{
		{NAICS: "3311", Year: 2023, Employment: f64(4200)},
		{NAICS: "3311", Year: 2024, Employment: f64(4100)},
		{NAICS: "3315", Year: 2023, Employment: nil}, // suppressed
		{NAICS: "3315", Year: 2024, Employment: f64(6800)},
		{NAICS: "3361", Year: 2023, Employment: f64(41200)},
		{NAICS: "3361", Year: 2024, Employment: f64(42500)},
		{NAICS: "3363", Year: 2023, Employment: f64(118400)},
		{NAICS: "3363", Year: 2024, Employment: f64(117900)},
		{NAICS: "8111", Year: 2024, Employment: f64(30200)},
	}))

	res, err := New(st, testTaxonomy(t)).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Segments)
	assert.Equal(t, 2023, res.FirstYear)
	assert.Equal(t, 2024, res.LastYear)
	assert.Equal(t, 1, res.SuppressedCells)
	assert.Equal(t, 1, res.FullySuppressed) // segment 3 in 2023
	assert.Equal(t, 7, res.SegmentPoints)
	assert.Equal(t, 5, res.StagePoints)

	points, err := st.SegmentSeries(ctx, store.SeriesKey{})
	require.NoError(t, err)
	byKey := make(map[string]model.SegmentPoint, len(points))
	for _, p := range points {
		byKey[fmt.Sprintf("%d/%d", p.SegmentID, p.Year)] = p
	}

	// Two-member segment sums its codes; labels come from the taxonomy.
	oem := byKey["7/2024"]
	assert.Equal(t, "7. Core Automotive", oem.Segment)
	assert.Equal(t, 160400.0, oem.Employment)
	assert.Equal(t, model.ValueObserved, oem.ValueType)
	assert.Nil(t, oem.AppliedYoYPct)

	// The fully suppressed segment-year is present, at zero.
	assert.Equal(t, 0.0, byKey["3/2023"].Employment)
	assert.Equal(t, 6800.0, byKey["3/2024"].Employment)

	// 8111 has no 2023 row, so segment 9 only covers 2024.
	_, ok := byKey["9/2023"]
	assert.False(t, ok)
	assert.Equal(t, 30200.0, byKey["9/2024"].Employment)

	stages, err := st.StageSeries(ctx, store.SeriesKey{})
	require.NoError(t, err)
	byStage := make(map[string]float64, len(stages))
	for _, p := range stages {
		byStage[fmt.Sprintf("%s/%d", p.Stage, p.Year)] = p.Employment
	}
	assert.Equal(t, 4200.0, byStage["Upstream/2023"]) // suppressed foundry cell adds nothing
	assert.Equal(t, 10900.0, byStage["Upstream/2024"])
	assert.Equal(t, 160400.0, byStage["OEM/2024"])
	assert.Equal(t, 30200.0, byStage["Downstream/2024"])

	audit, err := st.Suppressions(ctx)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, model.Suppression{NAICS: "3315", SegmentID: 3, Year: 2023}, audit[0])
}

func TestAggregator_Run_UnmappedCode(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceIndustryEmployment(ctx, []model.IndustryEmployment{
		{NAICS: "3361", Year: 2024, Employment: f64(42500)},
		{NAICS: "4599", Year: 2024, Employment: f64(1200)},
		{NAICS: "4599", Year: 2023, Employment: f64(1150)},
	}))

	_, err := New(st, testTaxonomy(t)).Run(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "missing segment assignment")
	assert.ErrorContains(t, err, "4599")

	// Nothing is stored on a failed coverage check.
	points, serr := st.SegmentSeries(ctx, store.SeriesKey{})
	require.NoError(t, serr)
	assert.Empty(t, points)
}

func TestAggregator_Run_NoDataStaged(t *testing.T) {
	st := newTestStore(t)

	_, err := New(st, testTaxonomy(t)).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "no industry employment staged")
}

func TestAggregator_Run_ReplacesPriorSeries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceIndustryEmployment(ctx, []model.IndustryEmployment{
		{NAICS: "3361", Year: 2023, Employment: f64(41200)},
		{NAICS: "3361", Year: 2024, Employment: f64(42500)},
		{NAICS: "3315", Year: 2024, Employment: nil},
	}))
	agg := New(st, testTaxonomy(t))
	_, err := agg.Run(ctx)
	require.NoError(t, err)

	// A re-ingest that fills the suppressed cell and drops a year.
	require.NoError(t, st.ReplaceIndustryEmployment(ctx, []model.IndustryEmployment{
		{NAICS: "3361", Year: 2024, Employment: f64(42500)},
		{NAICS: "3315", Year: 2024, Employment: f64(6800)},
	}))
	res, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SuppressedCells)

	points, err := st.SegmentSeries(ctx, store.SeriesKey{})
	require.NoError(t, err)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, 2024, p.Year)
	}

	audit, err := st.Suppressions(ctx)
	require.NoError(t, err)
	assert.Empty(t, audit)
}
