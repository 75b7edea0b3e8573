package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/workforce-cli/internal/config"
)

func TestQCEW_Metadata(t *testing.T) {
	ds := &QCEW{}
	assert.Equal(t, "qcew", ds.Name())
	assert.Equal(t, "industry_employment", ds.Table())
	assert.Equal(t, GroupSeries, ds.Group())
	assert.Equal(t, Annual, ds.Cadence())
}

func TestQCEW_ShouldRun(t *testing.T) {
	ds := &QCEW{}
	now := time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC)

	// Never synced -> should run
	assert.True(t, ds.ShouldRun(now, nil))

	// Synced last year -> should run (past June release)
	lastYear := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, ds.ShouldRun(now, &lastYear))

	// Synced this year after release -> should not run
	thisYear := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, ds.ShouldRun(now, &thisYear))

	// Before release month -> should not run
	march := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.False(t, ds.ShouldRun(march, &lastYear))
}

// qcewFixture writes a census workbook in the published layout: three banner
// rows, then a header with a Series ID column and annual-average columns.
func qcewFixture(t *testing.T, dir string, rows [][]string) *config.Config {
	banner := [][]string{
		{"Quarterly Census of Employment and Wages"},
		{"Michigan, Private, All establishment sizes"},
		{},
	}
	writeWorkbook(t, filepath.Join(dir, "qcew.xlsx"), sheetFixture{
		name: "Sheet1",
		rows: append(banner, rows...),
	})
	return &config.Config{Sources: config.SourcesConfig{QCEWPath: "qcew.xlsx"}}
}

func TestQCEW_Sync_Success(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	cfg := qcewFixture(t, dir, [][]string{
		{"Series ID", "Industry", "Annual\n2023", "Annual\n2024"},
		{"ENU2600020523361", "Motor vehicle mfg", "41,200", "42,500"},
		{"ENU2600020523363", "Parts mfg", "", "118,400"}, // 2023 suppressed
	})

	ds := &QCEW{cfg: cfg}
	result, err := ds.Sync(ctx, st, nil, dir)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.RowsSynced)
	assert.Equal(t, 2, result.Metadata["naics_codes"])
	assert.Equal(t, "2023-2024", result.Metadata["years"])
	assert.Equal(t, 1, result.Metadata["suppressed"])

	rows, err := st.IndustryEmployment(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	byKey := make(map[string]*float64)
	for _, r := range rows {
		byKey[fmt.Sprintf("%s/%d", r.NAICS, r.Year)] = r.Employment
	}
	require.NotNil(t, byKey["3361/2024"])
	assert.Equal(t, 42500.0, *byKey["3361/2024"])
	require.NotNil(t, byKey["3361/2023"])
	assert.Equal(t, 41200.0, *byKey["3361/2023"])
	assert.Nil(t, byKey["3363/2023"]) // suppressed stays null
}

func TestQCEW_Sync_SumsOwnershipSplits(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	// The same industry published under two ownership series.
	cfg := qcewFixture(t, dir, [][]string{
		{"Series ID", "Annual\n2024"},
		{"ENU2600020523361", "40,000"},
		{"ENU2600020533361", "2,500"},
	})

	ds := &QCEW{cfg: cfg}
	result, err := ds.Sync(ctx, st, nil, dir)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RowsSynced)

	rows, err := st.IndustryEmployment(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Employment)
	assert.Equal(t, 42500.0, *rows[0].Employment)
}

func TestQCEW_Sync_MissingSeriesColumn(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	cfg := qcewFixture(t, dir, [][]string{
		{"Industry", "Annual\n2024"},
		{"Motor vehicle mfg", "42,500"},
	})

	ds := &QCEW{cfg: cfg}
	_, err := ds.Sync(context.Background(), st, nil, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Series ID")
}

func TestQCEW_Sync_NoAnnualColumns(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	cfg := qcewFixture(t, dir, [][]string{
		{"Series ID", "Qtr1\n2024"},
		{"ENU2600020523361", "42,500"},
	})

	ds := &QCEW{cfg: cfg}
	_, err := ds.Sync(context.Background(), st, nil, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Annual")
}

func TestQCEW_Sync_NoNAICSSeries(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	// Series IDs that do not end in a 4-digit industry code.
	cfg := qcewFixture(t, dir, [][]string{
		{"Series ID", "Annual\n2024"},
		{"ENU26000205TOTAL", "42,500"},
	})

	ds := &QCEW{cfg: cfg}
	_, err := ds.Sync(context.Background(), st, nil, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no NAICS series")
}

func TestQCEW_Sync_MissingWorkbook(t *testing.T) {
	st := newTestStore(t)
	cfg := &config.Config{Sources: config.SourcesConfig{QCEWPath: "nope.xlsx"}}

	ds := &QCEW{cfg: cfg}
	_, err := ds.Sync(context.Background(), st, nil, t.TempDir())
	assert.Error(t, err)
}
