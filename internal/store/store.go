// Package store persists everything the forecast pipeline stages and
// produces: normalized source data, per-branch results, ingest sync history
// and run records. Each pipeline stage reads its inputs from here and writes
// its outputs back, so stages can be run and re-run independently.
package store

import (
	"context"
	"time"

	"github.com/sells-group/workforce-cli/internal/model"
)

// Geography codes for staged forecast series.
const (
	GeoMichigan = "MI"
	GeoUS       = "US"
)

// Metrics carried by the Moody's workbook.
const (
	MetricEmployment = "employment"
	MetricWages      = "wages"
	MetricGDP        = "gdp"
)

// Staffing sources. The state staffing patterns carry the base-year
// occupational mix; the national patterns carry the projection endpoints.
const (
	StaffingMCDA = "mcda"
	StaffingUS   = "us"
)

// MoodysRow is one staged value from a Moody's industry forecast series,
// keyed by geography ("MI" or "US") and metric ("employment", "wages",
// "gdp"). Value is nil where the source series has gaps.
type MoodysRow struct {
	Geography string   `json:"geography"`
	Metric    string   `json:"metric"`
	NAICS     string   `json:"naics_code"`
	Year      int      `json:"year"`
	Value     *float64 `json:"value"`
}

// SeriesKey identifies one stored employment series. Attribution is empty
// for the raw census rollup; Growth is empty for observed-only series that
// have not been extended yet.
type SeriesKey struct {
	Attribution model.Attribution
	Growth      model.GrowthSource
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// SyncEntry is one row of ingest history.
type SyncEntry struct {
	ID          int64          `json:"id"`
	Dataset     string         `json:"dataset"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RowsSynced  int64          `json:"rows_synced"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SyncResult holds the outcome of a dataset sync, passed to CompleteSync.
type SyncResult struct {
	RowsSynced int64          `json:"rows_synced"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Store defines the persistence interface for the forecast pipeline.
type Store interface {
	// Staged source data. Replace methods swap the full dataset inside a
	// transaction; a failed sync leaves the previous data intact.
	ReplaceIndustryEmployment(ctx context.Context, rows []model.IndustryEmployment) error
	IndustryEmployment(ctx context.Context) ([]model.IndustryEmployment, error)

	ReplaceMoodysSeries(ctx context.Context, geography, metric string, rows []MoodysRow) error
	MoodysSeries(ctx context.Context, geography, metric string) ([]MoodysRow, error)

	ReplaceAttributionShares(ctx context.Context, source model.Attribution, shares []model.AttributionShare) error
	AttributionShares(ctx context.Context, source model.Attribution) ([]model.AttributionShare, error)

	ReplaceStaffing(ctx context.Context, source string, rows []model.StaffingRow) error
	Staffing(ctx context.Context, source string) ([]model.StaffingRow, error)

	ReplaceOccupationProfiles(ctx context.Context, rows []model.OccupationProfile) error
	OccupationProfiles(ctx context.Context) (map[string]model.OccupationProfile, error)

	// Computed series and rates.
	ReplaceSegmentSeries(ctx context.Context, key SeriesKey, points []model.SegmentPoint) error
	SegmentSeries(ctx context.Context, key SeriesKey) ([]model.SegmentPoint, error)
	ReplaceStageSeries(ctx context.Context, key SeriesKey, points []model.StagePoint) error
	StageSeries(ctx context.Context, key SeriesKey) ([]model.StagePoint, error)

	ReplaceSuppressions(ctx context.Context, rows []model.Suppression) error
	Suppressions(ctx context.Context) ([]model.Suppression, error)

	ReplaceSegmentDiagnostics(ctx context.Context, source model.Attribution, rows []model.SegmentDiagnostics) error
	SegmentDiagnostics(ctx context.Context) ([]model.SegmentDiagnostics, error)

	ReplaceAttributionAudit(ctx context.Context, source model.Attribution, rows []model.AttributionAudit) error
	AttributionAudit(ctx context.Context) ([]model.AttributionAudit, error)

	ReplaceGrowthRates(ctx context.Context, source model.GrowthSource, segRates []model.SegmentRate, stageRates []model.StageRate) error
	SegmentRates(ctx context.Context, source model.GrowthSource) ([]model.SegmentRate, error)
	StageRates(ctx context.Context, source model.GrowthSource) ([]model.StageRate, error)

	// Occupation forecasts and validation, per methodology branch.
	ReplaceOccupationForecasts(ctx context.Context, m model.Methodology, rows []model.OccupationForecast) error
	OccupationForecasts(ctx context.Context, m model.Methodology) ([]model.OccupationForecast, error)

	ReplaceValidationResults(ctx context.Context, m model.Methodology, rows []model.ValidationResult) error
	ValidationResults(ctx context.Context) ([]model.ValidationResult, error)

	// Runs
	CreateRun(ctx context.Context, baseYear, horizonYear int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Sync log
	StartSync(ctx context.Context, dataset string) (int64, error)
	CompleteSync(ctx context.Context, syncID int64, result *SyncResult) error
	FailSync(ctx context.Context, syncID int64, errMsg string) error
	LastSuccess(ctx context.Context, dataset string) (*time.Time, error)
	ListSyncs(ctx context.Context) ([]SyncEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
