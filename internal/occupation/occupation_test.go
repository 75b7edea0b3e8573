package occupation

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func mcdaDetail(segID int, segment, occ, title string, year int, emp float64) model.StaffingRow {
	return model.StaffingRow{
		SegmentID: segID, Segment: segment,
		OccCode: occ, OccTitle: title,
		Year: year, Employment: emp,
		OccLevel: model.OccLevelDetailed,
	}
}

func usDetail(segID int, occ string, year int, emp float64) model.StaffingRow {
	return model.StaffingRow{
		SegmentID: segID, Segment: "",
		OccCode: occ, OccTitle: occ,
		Year: year, Employment: emp,
		OccLevel: model.OccLevelDetailed,
	}
}

func usTotal(segID, year int, emp float64) model.StaffingRow {
	return model.StaffingRow{
		SegmentID: segID,
		OccCode:   "00-0000", OccTitle: "Total, All Occupations",
		Year: year, Employment: emp,
		OccLevel: model.OccLevelMajor, IsTotal: true,
	}
}

func seedBranchSeries(t *testing.T, st store.Store, m model.Methodology, pts []model.SegmentPoint) {
	t.Helper()
	key := store.SeriesKey{Attribution: m.Attribution, Growth: m.Growth}
	require.NoError(t, st.ReplaceSegmentSeries(context.Background(), key, pts))
}

func segPoint(segID int, segment string, year int, emp float64) model.SegmentPoint {
	return model.SegmentPoint{
		SegmentID: segID, Segment: segment, Year: year,
		Employment: emp, ValueType: model.ValueForecast,
	}
}

func TestDistributor_Run(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceStaffing(ctx, store.StaffingMCDA, []model.StaffingRow{
		mcdaDetail(7, "7. Core Automotive", "51-2031", "Assemblers", 2024, 6000),
		mcdaDetail(7, "7. Core Automotive", "17-2141", "Mechanical Engineers", 2024, 4000),
		mcdaDetail(1, "1. Materials & Processing", "51-4121", "Welders", 2024, 500),
		// Prior vintage, rollup rows, and totals never shape the shares.
		mcdaDetail(7, "7. Core Automotive", "51-2031", "Assemblers", 2021, 9999),
		{SegmentID: 7, Segment: "7. Core Automotive", OccCode: "51-0000", OccTitle: "Production",
			Year: 2024, Employment: 7777, OccLevel: model.OccLevelMajor},
		{SegmentID: 7, Segment: "7. Core Automotive", OccCode: "00-0000", OccTitle: "Total",
			Year: 2024, Employment: 11111, OccLevel: model.OccLevelMajor, IsTotal: true},
	}))

	// National pair for 51-2031 only: share falls from 0.10 to 0.09, so
	// the shift ratio is 0.9.
	require.NoError(t, st.ReplaceStaffing(ctx, store.StaffingUS, []model.StaffingRow{
		usTotal(7, 2024, 200000),
		usTotal(7, 2034, 210000),
		usDetail(7, "51-2031", 2024, 20000),
		usDetail(7, "51-2031", 2034, 18900),
	}))

	seedBranchSeries(t, st, model.Methodology{Attribution: model.AttributionBEA, Growth: model.GrowthMoody}, []model.SegmentPoint{
		{SegmentID: 7, Segment: "7. Core Automotive", Year: 2023, Employment: 90000, ValueType: model.ValueObserved},
		segPoint(7, "7. Core Automotive", 2024, 100000),
		segPoint(7, "7. Core Automotive", 2029, 110000),
		segPoint(7, "7. Core Automotive", 2034, 120000),
		segPoint(1, "1. Materials & Processing", 2024, 1000),
		segPoint(9, "9. Dealers, Maintenance, & Repair", 2024, 500),
	})
	seedBranchSeries(t, st, model.Methodology{Attribution: model.AttributionBEA, Growth: model.GrowthBLS},
		[]model.SegmentPoint{segPoint(7, "7. Core Automotive", 2024, 50000)})
	seedBranchSeries(t, st, model.Methodology{Attribution: model.AttributionLightcast, Growth: model.GrowthMoody},
		[]model.SegmentPoint{segPoint(7, "7. Core Automotive", 2024, 60000)})
	seedBranchSeries(t, st, model.Methodology{Attribution: model.AttributionLightcast, Growth: model.GrowthBLS},
		[]model.SegmentPoint{segPoint(7, "7. Core Automotive", 2024, 70000)})

	res, err := New(st, 2024, 2034, 5.0).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Branches)
	assert.Equal(t, 2, res.Segments)
	assert.Equal(t, 3, res.Occupations)
	assert.Equal(t, 26, res.Rows)
	assert.Equal(t, 1, res.ShiftPairs)
	assert.Equal(t, 2, res.MissingShifts)
	assert.Equal(t, 1, res.SharelessSegments)

	rows, err := st.OccupationForecasts(ctx, model.Methodology{Attribution: model.AttributionBEA, Growth: model.GrowthMoody})
	require.NoError(t, err)
	require.Len(t, rows, 14)
	byKey := make(map[string]model.OccupationForecast, len(rows))
	for _, r := range rows {
		assert.GreaterOrEqual(t, r.Year, 2024, "pre-base years never get occupation rows")
		byKey[fmt.Sprintf("%d/%s/%d", r.SegmentID, r.OccCode, r.Year)] = r
	}

	base := byKey["7/51-2031/2024"]
	assert.InDelta(t, 60000.0, base.Employment, 1e-9) // 100000 x 0.6
	assert.True(t, base.HasShiftData)
	assert.Equal(t, "Assemblers", base.OccTitle)

	// Halfway to the horizon the share is 0.6 + (0.6x0.9 - 0.6)/2 = 0.57.
	mid := byKey["7/51-2031/2029"]
	assert.InDelta(t, 62700.0, mid.Employment, 1e-6)
	end := byKey["7/51-2031/2034"]
	assert.InDelta(t, 64800.0, end.Employment, 1e-6) // 120000 x 0.54

	// No national pair: the base share holds constant.
	eng := byKey["7/17-2141/2029"]
	assert.InDelta(t, 44000.0, eng.Employment, 1e-6) // 110000 x 0.4
	assert.False(t, eng.HasShiftData)

	assert.InDelta(t, 1000.0, byKey["1/51-4121/2024"].Employment, 1e-9)

	agg := byKey["0/51-2031/2029"]
	assert.Equal(t, "0. All Segments", agg.Segment)
	assert.InDelta(t, 62700.0, agg.Employment, 1e-6)
	assert.True(t, agg.HasShiftData)
	weld := byKey["0/51-4121/2024"]
	assert.Equal(t, "Welders", weld.OccTitle)
	assert.InDelta(t, 1000.0, weld.Employment, 1e-9)
	assert.False(t, weld.HasShiftData)

	// Branches distribute their own totals.
	bls, err := st.OccupationForecasts(ctx, model.Methodology{Attribution: model.AttributionBEA, Growth: model.GrowthBLS})
	require.NoError(t, err)
	require.Len(t, bls, 4)
	for _, r := range bls {
		if r.SegmentID == 7 && r.OccCode == "51-2031" {
			assert.InDelta(t, 30000.0, r.Employment, 1e-9) // 50000 x 0.6
		}
	}
}

func TestDistributor_Run_NoNationalStaffing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceStaffing(ctx, store.StaffingMCDA, []model.StaffingRow{
		mcdaDetail(1, "1. Materials & Processing", "51-4121", "Welders", 2024, 500),
	}))
	for _, m := range model.AllMethodologies() {
		seedBranchSeries(t, st, m, []model.SegmentPoint{segPoint(1, "1. Materials & Processing", 2024, 1000)})
	}

	res, err := New(st, 2024, 2034, 5.0).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ShiftPairs)
	assert.Equal(t, 1, res.MissingShifts)

	rows, err := st.OccupationForecasts(ctx, model.AllMethodologies()[0])
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.False(t, r.HasShiftData)
	}
}

func TestDistributor_Run_NoStaffingPattern(t *testing.T) {
	st := newTestStore(t)

	_, err := New(st, 2024, 2034, 5.0).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "no staffing pattern staged")
}

func TestDistributor_Run_NoDetailedBaseRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceStaffing(ctx, store.StaffingMCDA, []model.StaffingRow{
		mcdaDetail(7, "7. Core Automotive", "51-2031", "Assemblers", 2021, 6000),
	}))

	_, err := New(st, 2024, 2034, 5.0).Run(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no detailed rows for 2024")
}

func TestDistributor_Run_MissingBranchSeries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceStaffing(ctx, store.StaffingMCDA, []model.StaffingRow{
		mcdaDetail(7, "7. Core Automotive", "51-2031", "Assemblers", 2024, 6000),
	}))
	seedBranchSeries(t, st, model.Methodology{Attribution: model.AttributionBEA, Growth: model.GrowthMoody},
		[]model.SegmentPoint{segPoint(7, "7. Core Automotive", 2024, 100000)})

	_, err := New(st, 2024, 2034, 5.0).Run(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "run the extender first")
}
