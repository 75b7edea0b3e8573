package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/workforce-cli/internal/config"
	"github.com/sells-group/workforce-cli/internal/model"
)

func TestEPProfiles_Metadata(t *testing.T) {
	ds := &EPProfiles{}
	assert.Equal(t, "ep_profiles", ds.Name())
	assert.Equal(t, "occupation_profiles", ds.Table())
	assert.Equal(t, GroupStaffing, ds.Group())
	assert.Equal(t, Annual, ds.Cadence())
}

func TestEPProfiles_ShouldRun(t *testing.T) {
	ds := &EPProfiles{}
	now := time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC)

	assert.True(t, ds.ShouldRun(now, nil))

	lastYear := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, ds.ShouldRun(now, &lastYear))

	thisFall := time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC)
	assert.False(t, ds.ShouldRun(now, &thisFall))
}

var epHeader = []string{
	"2024 National Employment Matrix title",
	"2024 National Employment Matrix code",
	"Occupation type",
	"Employment, 2024",
	"Employment, 2034",
	"Typical education needed for entry",
	"Work experience in a related occupation",
	"Typical on-the-job training needed to attain competency in the occupation",
}

func epFixtureRows(data [][]string) [][]string {
	rows := [][]string{
		{"Table 1.2 Employment by detailed occupation, 2024 and projected 2034"},
		epHeader,
	}
	return append(rows, data...)
}

func TestEPProfiles_Sync_Success(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	rows := epFixtureRows([][]string{
		{"Total, all occupations", "00-0000", "Summary", "169539.9", "177922.4", "-", "-", "-"},
		{"Welders, cutters, solderers, and brazers", "51-4121", "Line item", "431.8", "438.0", "High school diploma or equivalent", "None", "Moderate-term on-the-job training"},
		{"Software developers", "15-1252", "Line item", "1903.9", "2212.9", "Bachelor's degree", "None", "None"},
		{"Heavy and tractor-trailer truck drivers", "53-3032", "Line item", "2216.4", "2330.0", "Postsecondary nondegree award", "None", "Short-term on-the-job training"},
		{"Software developers", "15-1252", "Line item", "1.0", "1.0", "Doctoral or professional degree", "None", "None"},
		{"Note: Data are from the National Employment Matrix."},
	})
	writeWorkbook(t, filepath.Join(dir, "ep_table_12.xlsx"), sheetFixture{name: "Table 1.2", rows: rows})

	cfg := &config.Config{Sources: config.SourcesConfig{EPTablePath: "ep_table_12.xlsx"}}
	ds := &EPProfiles{cfg: cfg}
	result, err := ds.Sync(ctx, st, nil, dir)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.RowsSynced)
	assert.Equal(t, 4, result.Metadata["occupations"])
	assert.Equal(t, 1, result.Metadata["ungrouped_education"]) // the summary row's "-"

	profiles, err := st.OccupationProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 4)

	welders := profiles["51-4121"]
	assert.Equal(t, "High school diploma or equivalent", welders.EntryEducation)
	assert.Equal(t, "None", welders.WorkExperience)
	assert.Equal(t, "Moderate-term on-the-job training", welders.OnTheJobTraining)
	assert.Equal(t, model.EducationHSOrLess, welders.EducationGroup)

	// First row wins over the duplicate code.
	devs := profiles["15-1252"]
	assert.Equal(t, "Bachelor's degree", devs.EntryEducation)
	assert.Equal(t, model.EducationBAPlus, devs.EducationGroup)

	drivers := profiles["53-3032"]
	assert.Equal(t, model.EducationSomeCollege, drivers.EducationGroup)
}

func TestEPProfiles_Sync_DownloadsWhenMissing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	cfg := &config.Config{Sources: config.SourcesConfig{
		EPTablePath: "ep_table_12.xlsx",
		EPTableURL:  "https://www.bls.gov/emp/ind-occ-matrix/occupation.xlsx",
	}}

	rows := epFixtureRows([][]string{
		{"Welders, cutters, solderers, and brazers", "51-4121", "Line item", "431.8", "438.0", "High school diploma or equivalent", "None", "Moderate-term on-the-job training"},
	})

	f := &mockFetcher{}
	f.On("DownloadToFile", mock.Anything, cfg.Sources.EPTableURL, filepath.Join(dir, "ep_table_12.xlsx")).
		Run(func(args mock.Arguments) {
			writeWorkbook(t, args.String(2), sheetFixture{name: "Table 1.2", rows: rows})
		}).
		Return(int64(1024), nil)

	ds := &EPProfiles{cfg: cfg}
	result, err := ds.Sync(ctx, st, f, dir)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RowsSynced)
	f.AssertExpectations(t)
}

func TestEPProfiles_Sync_MissingWithNoURL(t *testing.T) {
	st := newTestStore(t)

	cfg := &config.Config{Sources: config.SourcesConfig{EPTablePath: "ep_table_12.xlsx"}}
	ds := &EPProfiles{cfg: cfg}
	_, err := ds.Sync(context.Background(), st, nil, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source URL")
}

func TestEPProfiles_Sync_WrongSheet(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	writeWorkbook(t, filepath.Join(dir, "ep_table_12.xlsx"), sheetFixture{
		name: "Table 1.1",
		rows: epFixtureRows(nil),
	})

	cfg := &config.Config{Sources: config.SourcesConfig{EPTablePath: "ep_table_12.xlsx"}}
	ds := &EPProfiles{cfg: cfg}
	_, err := ds.Sync(context.Background(), st, nil, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Table 1.2")
}

func TestEPProfiles_Sync_NoOccupationRows(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	rows := epFixtureRows([][]string{
		{"Note: Data are from the National Employment Matrix."},
	})
	writeWorkbook(t, filepath.Join(dir, "ep_table_12.xlsx"), sheetFixture{name: "Table 1.2", rows: rows})

	cfg := &config.Config{Sources: config.SourcesConfig{EPTablePath: "ep_table_12.xlsx"}}
	ds := &EPProfiles{cfg: cfg}
	_, err := ds.Sync(context.Background(), st, nil, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no occupation rows")
}
