// Package ingest stages the pipeline's source tables: each dataset knows how
// to locate its workbook or CSV export, normalize it, and replace the staged
// copy in the store. Datasets are registered once and selected by name or
// group; the engine decides which are due, runs them, and records the outcome
// in the sync log.
package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/workforce-cli/internal/fetcher"
	"github.com/sells-group/workforce-cli/internal/store"
)

// Group buckets datasets by the kind of input they stage.
type Group string

const (
	// GroupSeries covers the employment time series: the census workbook and
	// the Moody's forecast workbook.
	GroupSeries Group = "series"
	// GroupStaffing covers occupational staffing patterns and the national
	// projections attributes.
	GroupStaffing Group = "staffing"
	// GroupShares covers the automotive attribution share tables.
	GroupShares Group = "shares"
)

// ParseGroup converts a string like "series" into a Group.
func ParseGroup(s string) (Group, error) {
	switch Group(s) {
	case GroupSeries, GroupStaffing, GroupShares:
		return Group(s), nil
	default:
		return "", eris.Errorf("unknown group: %q (valid: series, staffing, shares)", s)
	}
}

// Cadence describes how often a dataset's source is refreshed upstream.
type Cadence string

const (
	// Annual datasets follow a publication calendar and sync once per year
	// after their release month.
	Annual Cadence = "annual"
	// Manual datasets are analyst-supplied files with no publication
	// schedule; they sync once and then only when forced.
	Manual Cadence = "manual"
)

// Dataset defines the interface each staged source must implement.
type Dataset interface {
	// Name returns the unique identifier for this dataset (e.g., "qcew").
	Name() string

	// Table returns the staging table the dataset loads.
	Table() string

	// Group returns which input group this dataset belongs to.
	Group() Group

	// Cadence returns how often this dataset is updated upstream.
	Cadence() Cadence

	// ShouldRun decides if this dataset needs syncing given the current time
	// and the time of the last successful sync (nil if never synced).
	ShouldRun(now time.Time, lastSync *time.Time) bool

	// Sync reads the source file under dataDir (downloading it first where
	// the dataset supports that), normalizes it, and replaces the staged
	// rows in the store.
	Sync(ctx context.Context, st store.Store, f fetcher.Fetcher, dataDir string) (*store.SyncResult, error)
}

// AnnualAfter returns true if a sync is needed for an annual dataset that
// releases after the given month. Syncs once per year after the release month.
func AnnualAfter(now time.Time, lastSync *time.Time, releaseMonth time.Month) bool {
	if lastSync == nil {
		return true
	}
	releaseDate := time.Date(now.Year(), releaseMonth, 1, 0, 0, 0, 0, time.UTC)
	return now.After(releaseDate) && lastSync.Before(releaseDate)
}

// ManualSchedule returns true only when the dataset has never been synced;
// re-staging an analyst-supplied file is always an explicit --force.
func ManualSchedule(lastSync *time.Time) bool {
	return lastSync == nil
}
