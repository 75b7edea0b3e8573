package model

import "time"

// RunStatus represents the current state of a forecast run.
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusAggregating  RunStatus = "aggregating"
	RunStatusAttributing  RunStatus = "attributing"
	RunStatusExtending    RunStatus = "extending"
	RunStatusDistributing RunStatus = "distributing"
	RunStatusValidating   RunStatus = "validating"
	RunStatusReporting    RunStatus = "reporting"
	RunStatusComplete     RunStatus = "complete"
	RunStatusFailed       RunStatus = "failed"
)

// Run represents a single end-to-end forecast run.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	BaseYear    int        `json:"base_year"`
	HorizonYear int        `json:"horizon_year"`
	Result      *RunResult `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Segments      int      `json:"segments"`
	Occupations   int      `json:"occupations"`
	ForecastRows  int      `json:"forecast_rows"`
	MaxDivergence float64  `json:"max_divergence_pct"`
	Warnings      []string `json:"warnings,omitempty"`
	OutputDir     string   `json:"output_dir,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// ValidationResult compares distributed occupation totals against the
// segment series they were drawn from, for one segment under one
// methodology. Divergence beyond the configured tolerance fails the run.
type ValidationResult struct {
	Methodology   string  `json:"methodology"`
	SegmentID     int     `json:"segment_id"`
	Segment       string  `json:"segment_name"`
	Year          int     `json:"year"`
	SegmentTotal  float64 `json:"segment_employment"`
	OccupationSum float64 `json:"occupation_sum"`
	PctDiff       float64 `json:"pct_diff"`
	Pass          bool    `json:"pass"`
}
