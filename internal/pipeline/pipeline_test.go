package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/workforce-cli/internal/config"
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
		{NAICS: "3361", Title: "Motor Vehicle Mfg", SegmentID: 7, Segment: "Core Automotive", Stage: taxonomy.StageOEM},
		{NAICS: "8111", Title: "Automotive Repair", SegmentID: 9, Segment: "Dealers, Maintenance, & Repair", Stage: taxonomy.StageDownstream},
	})
	require.NoError(t, err)
	return tax
}

func testConfig(outDir string) *config.Config {
	return &config.Config{
		Data: config.DataConfig{OutputDir: outDir},
		Forecast: config.ForecastConfig{
			BaseYear:     2024,
			HorizonYear:  2026,
			SnapshotYear: 2025,
			TolerancePct: 5.0,
			Geography:    "MI",
		},
	}
}

func f64(v float64) *float64 { return &v }

// seedInputs stages everything ingest would: census employment, both
// share tables, a Moody's series, the national staffing rollup, the
// MCDA staffing pattern, and occupation profiles.
func seedInputs(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.ReplaceIndustryEmployment(ctx, []model.IndustryEmployment{
		{NAICS: "3361", Year: 2023, Employment: f64(100000)},
		{NAICS: "3361", Year: 2024, Employment: f64(100000)},
		{NAICS: "8111", Year: 2023, Employment: f64(30000)},
		{NAICS: "8111", Year: 2024, Employment: f64(30000)},
	}))

	require.NoError(t, st.ReplaceAttributionShares(ctx, model.AttributionBEA, []model.AttributionShare{
		{Source: model.AttributionBEA, NAICS: "3361", Share: 0.8},
		{Source: model.AttributionBEA, NAICS: "8111", Share: 0.5},
	}))
	// Lightcast publishes no share for 8111, so segment 9 carries raw.
	require.NoError(t, st.ReplaceAttributionShares(ctx, model.AttributionLightcast, []model.AttributionShare{
		{Source: model.AttributionLightcast, NAICS: "3361", Share: 0.6},
	}))

	require.NoError(t, st.ReplaceMoodysSeries(ctx, store.GeoMichigan, store.MetricEmployment, []store.MoodysRow{
		{NAICS: "3361", Year: 2024, Value: f64(100)},
		{NAICS: "3361", Year: 2025, Value: f64(102)},
		{NAICS: "3361", Year: 2026, Value: f64(104.04)},
		{NAICS: "8111", Year: 2024, Value: f64(50)},
		{NAICS: "8111", Year: 2025, Value: f64(50.5)},
		{NAICS: "8111", Year: 2026, Value: f64(51.005)},
	}))

	// Segment 7 grows 5%/yr nationally (1.1025 over two years); its
	// assembler share drifts 0.10 -> 0.09. Segment 9 is flat with no
	// detailed rows, so its occupation keeps a constant share.
	require.NoError(t, st.ReplaceStaffing(ctx, store.StaffingUS, []model.StaffingRow{
		{SegmentID: 7, Segment: "Core Automotive", OccCode: "00-0000", OccTitle: "Total, All Occupations", Year: 2024, Employment: 200000, OccLevel: model.OccLevelMajor, IsTotal: true},
		{SegmentID: 7, Segment: "Core Automotive", OccCode: "00-0000", OccTitle: "Total, All Occupations", Year: 2026, Employment: 220500, OccLevel: model.OccLevelMajor, IsTotal: true},
		{SegmentID: 7, Segment: "Core Automotive", OccCode: "51-2031", OccTitle: "Assemblers", Year: 2024, Employment: 20000, OccLevel: model.OccLevelDetailed},
		{SegmentID: 7, Segment: "Core Automotive", OccCode: "51-2031", OccTitle: "Assemblers", Year: 2026, Employment: 19845, OccLevel: model.OccLevelDetailed},
		{SegmentID: 9, Segment: "Dealers, Maintenance, & Repair", OccCode: "00-0000", OccTitle: "Total, All Occupations", Year: 2024, Employment: 100000, OccLevel: model.OccLevelMajor, IsTotal: true},
		{SegmentID: 9, Segment: "Dealers, Maintenance, & Repair", OccCode: "00-0000", OccTitle: "Total, All Occupations", Year: 2026, Employment: 100000, OccLevel: model.OccLevelMajor, IsTotal: true},
	}))

	require.NoError(t, st.ReplaceStaffing(ctx, store.StaffingMCDA, []model.StaffingRow{
		{SegmentID: 7, Segment: "Core Automotive", OccCode: "51-2031", OccTitle: "Assemblers", Year: 2024, Employment: 6000, OccLevel: model.OccLevelDetailed},
		{SegmentID: 7, Segment: "Core Automotive", OccCode: "17-2141", OccTitle: "Mechanical Engineers", Year: 2024, Employment: 4000, OccLevel: model.OccLevelDetailed},
		{SegmentID: 9, Segment: "Dealers, Maintenance, & Repair", OccCode: "49-3023", OccTitle: "Automotive Service Technicians", Year: 2024, Employment: 10000, OccLevel: model.OccLevelDetailed},
		{SegmentID: 7, Segment: "Core Automotive", OccCode: "51-2031", OccTitle: "Assemblers", Year: 2021, Employment: 5000, OccLevel: model.OccLevelDetailed},
		{SegmentID: 7, Segment: "Core Automotive", OccCode: "17-2141", OccTitle: "Mechanical Engineers", Year: 2021, Employment: 3000, OccLevel: model.OccLevelDetailed},
		{SegmentID: 9, Segment: "Dealers, Maintenance, & Repair", OccCode: "49-3023", OccTitle: "Automotive Service Technicians", Year: 2021, Employment: 9000, OccLevel: model.OccLevelDetailed},
	}))

	require.NoError(t, st.ReplaceOccupationProfiles(ctx, []model.OccupationProfile{
		{OccCode: "51-2031", EntryEducation: "High school diploma or equivalent", EducationGroup: model.EducationHSOrLess},
		{OccCode: "17-2141", EntryEducation: "Bachelor's degree", EducationGroup: model.EducationBAPlus},
		{OccCode: "49-3023", EntryEducation: "Postsecondary nondegree award", EducationGroup: model.EducationSomeCollege},
	}))
}

func TestPipeline_Run(t *testing.T) {
	st := newTestStore(t)
	seedInputs(t, st)
	outDir := filepath.Join(t.TempDir(), "out")
	ctx := context.Background()

	res, err := New(testConfig(outDir), st, testTaxonomy(t)).Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	// Every stage ran, in order.
	var stages []string
	for _, s := range res.Stages {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{"aggregate", "attribution", "extend", "distribute", "validate", "report"}, stages)

	require.NotNil(t, res.Aggregate)
	assert.Equal(t, 2, res.Aggregate.Segments)
	assert.Equal(t, 2023, res.Aggregate.FirstYear)
	assert.Equal(t, 2024, res.Aggregate.LastYear)
	assert.Equal(t, 0, res.Aggregate.SuppressedCells)

	require.Len(t, res.Attribution, 2)
	assert.Equal(t, model.AttributionBEA, res.Attribution[0].Source)
	assert.Equal(t, 0, res.Attribution[0].UncoveredSegments)
	assert.Equal(t, model.AttributionLightcast, res.Attribution[1].Source)
	assert.Equal(t, 1, res.Attribution[1].UncoveredSegments)

	require.Len(t, res.Rates, 2)
	assert.Equal(t, model.GrowthMoody, res.Rates[0].Source)
	assert.Equal(t, model.GrowthBLS, res.Rates[1].Source)

	require.Len(t, res.Extensions, 4)
	for _, ext := range res.Extensions {
		assert.Equal(t, 2, ext.Segments)
		assert.Equal(t, 0, ext.Unanchored)
	}

	require.NotNil(t, res.Occupations)
	assert.Equal(t, 4, res.Occupations.Branches)
	assert.Equal(t, 2, res.Occupations.Segments)
	assert.Equal(t, 3, res.Occupations.Occupations)
	assert.Equal(t, 72, res.Occupations.Rows)
	assert.Equal(t, 1, res.Occupations.ShiftPairs)
	assert.Equal(t, 0, res.Occupations.SharelessSegments)

	// The assembler share decays 0.60 -> 0.54 without renormalization,
	// so every branch misses its 2026 segment total by 6%.
	require.NotNil(t, res.Validation)
	assert.Equal(t, 24, res.Validation.Checks)
	assert.Equal(t, 4, res.Validation.Failures)
	assert.InDelta(t, 6.0, res.Validation.MaxDivergence, 1e-9)

	require.NotNil(t, res.Report)
	assert.Equal(t, outDir, res.Report.OutputDir)
	assert.Equal(t, 22, res.Report.Files)
	for _, name := range []string{
		"segment_series_qcew.csv",
		"segment_series_bea_moody.csv",
		"occupation_forecasts_2024_2026.csv",
		"occupation_snapshot_2025.csv",
		"validation_results.csv",
		"education_summary.csv",
	} {
		_, statErr := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, statErr, name)
	}

	// The run row carries the rolled-up result.
	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 2024, run.BaseYear)
	assert.Equal(t, 2026, run.HorizonYear)
	require.NotNil(t, run.Result)
	assert.Equal(t, 2, run.Result.Segments)
	assert.Equal(t, 3, run.Result.Occupations)
	assert.Equal(t, 72, run.Result.ForecastRows)
	assert.InDelta(t, 6.0, run.Result.MaxDivergence, 1e-9)
	assert.Equal(t, outDir, run.Result.OutputDir)
	assert.Empty(t, run.Result.Error)

	require.Len(t, run.Result.Warnings, 2)
	assert.Contains(t, run.Result.Warnings[0], "lightcast attribution leaves 1 segments")
	assert.Contains(t, run.Result.Warnings[1], "4 validation checks exceeded tolerance")
}

// TestPipeline_Run_BranchMath spot-checks one value through the whole
// chain: census 100000 x bea 0.8 x moody +2%/yr x drifting assembler
// share.
func TestPipeline_Run_BranchMath(t *testing.T) {
	st := newTestStore(t)
	seedInputs(t, st)
	ctx := context.Background()

	_, err := New(testConfig(filepath.Join(t.TempDir(), "out")), st, testTaxonomy(t)).Run(ctx)
	require.NoError(t, err)

	points, err := st.SegmentSeries(ctx, store.SeriesKey{Attribution: model.AttributionBEA, Growth: model.GrowthMoody})
	require.NoError(t, err)
	byYear := make(map[int]model.SegmentPoint)
	for _, p := range points {
		if p.SegmentID == 7 {
			byYear[p.Year] = p
		}
	}
	assert.Equal(t, 80000.0, byYear[2024].Employment)
	assert.Equal(t, model.ValueObserved, byYear[2024].ValueType)
	assert.InDelta(t, 81600.0, byYear[2025].Employment, 1e-6)
	assert.InDelta(t, 83232.0, byYear[2026].Employment, 1e-6)
	assert.Equal(t, model.ValueForecast, byYear[2026].ValueType)

	rows, err := st.OccupationForecasts(ctx, model.Methodology{Attribution: model.AttributionBEA, Growth: model.GrowthMoody})
	require.NoError(t, err)
	byKey := make(map[string]model.OccupationForecast, len(rows))
	for _, r := range rows {
		byKey[fmt.Sprintf("%d/%s/%d", r.SegmentID, r.OccCode, r.Year)] = r
	}

	asm24 := byKey["7/51-2031/2024"]
	assert.InDelta(t, 48000.0, asm24.Employment, 1e-6) // 80000 x 0.6
	assert.True(t, asm24.HasShiftData)

	asm26 := byKey["7/51-2031/2026"]
	assert.InDelta(t, 83232.0*0.54, asm26.Employment, 1e-6)

	eng26 := byKey["7/17-2141/2026"]
	assert.InDelta(t, 83232.0*0.4, eng26.Employment, 1e-6)
	assert.False(t, eng26.HasShiftData)

	tech25 := byKey["9/49-3023/2025"]
	assert.InDelta(t, 15150.0, tech25.Employment, 1e-6) // 30000 x 0.5 x 1.01

	agg24 := byKey["0/51-2031/2024"]
	assert.Equal(t, "0. All Segments", agg24.Segment)
	assert.InDelta(t, 48000.0, agg24.Employment, 1e-6)

	checks, err := st.ValidationResults(ctx)
	require.NoError(t, err)
	var failed model.ValidationResult
	for _, c := range checks {
		if c.Methodology == "bea_moody" && c.SegmentID == 7 && c.Year == 2026 {
			failed = c
		}
	}
	assert.False(t, failed.Pass)
	assert.InDelta(t, -6.0, failed.PctDiff, 1e-9)
}

func TestPipeline_Run_StageFailure(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res, err := New(testConfig(t.TempDir()), st, testTaxonomy(t)).Run(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no industry employment staged")

	// The run row records the failure.
	require.NotNil(t, res)
	run, getErr := st.GetRun(ctx, res.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.Result)
	assert.Contains(t, run.Result.Error, "no industry employment staged")

	require.Len(t, res.Stages, 1)
	assert.Equal(t, "aggregate", res.Stages[0].Stage)
}
