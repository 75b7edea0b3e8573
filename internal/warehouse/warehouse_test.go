package warehouse

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
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

func f64(v float64) *float64 { return &v }

func expectUpsert(mock pgxmock.PgxPoolIface, tempTable string, cols []string, rows int64) {
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{tempTable}, cols).WillReturnResult(rows)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", rows))
	mock.ExpectCommit()
}

func TestPublisher_Publish(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceSegmentSeries(ctx, store.SeriesKey{}, []model.SegmentPoint{
		{SegmentID: 7, Segment: "7. Core Automotive", Year: 2023, Employment: 159600, ValueType: model.ValueObserved},
		{SegmentID: 7, Segment: "7. Core Automotive", Year: 2024, Employment: 160400, ValueType: model.ValueObserved},
	}))
	key := store.SeriesKey{Attribution: model.AttributionBEA, Growth: model.GrowthMoody}
	require.NoError(t, st.ReplaceSegmentSeries(ctx, key, []model.SegmentPoint{
		{SegmentID: 7, Segment: "7. Core Automotive", Year: 2024, Employment: 128320, ValueType: model.ValueObserved},
		{SegmentID: 7, Segment: "7. Core Automotive", Year: 2025, Employment: 130886.4, ValueType: model.ValueForecast, Source: model.GrowthMoody, AppliedYoYPct: f64(2.0)},
	}))
	m := model.Methodology{Attribution: model.AttributionBEA, Growth: model.GrowthMoody}
	require.NoError(t, st.ReplaceOccupationForecasts(ctx, m, []model.OccupationForecast{
		{SegmentID: 7, Segment: "7. Core Automotive", OccCode: "51-2031", OccTitle: "Assemblers", Year: 2024, Employment: 76992, HasShiftData: true},
		{SegmentID: 7, Segment: "7. Core Automotive", OccCode: "51-2031", OccTitle: "Assemblers", Year: 2025, Employment: 77500, HasShiftData: true},
	}))

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Raw rollup (2 rows) plus the one staged branch (2 rows), then the
	// branch's occupation forecasts.
	expectUpsert(mock, "_tmp_upsert_workforce_segment_series", segmentColumns, 4)
	expectUpsert(mock, "_tmp_upsert_workforce_occupation_forecasts", occupationColumns, 2)

	res, err := New(st, mock, "workforce").Publish(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.SegmentRows)
	assert.Equal(t, int64(2), res.OccupationRows)
	assert.Equal(t, 1, res.Branches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_Publish_NothingStaged(t *testing.T) {
	st := newTestStore(t)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = New(st, mock, "workforce").Publish(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "run the forecast first")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_Publish_NoOccupations(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	key := store.SeriesKey{Attribution: model.AttributionBEA, Growth: model.GrowthMoody}
	require.NoError(t, st.ReplaceSegmentSeries(ctx, key, []model.SegmentPoint{
		{SegmentID: 7, Segment: "7. Core Automotive", Year: 2024, Employment: 128320, ValueType: model.ValueObserved},
	}))

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectUpsert(mock, "_tmp_upsert_workforce_segment_series", segmentColumns, 1)

	_, err = New(st, mock, "workforce").Publish(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no occupation forecasts staged")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_Migrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE SCHEMA", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS .*segment_series").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS .*occupation_forecasts").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, New(newTestStore(t), mock, "workforce").Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
