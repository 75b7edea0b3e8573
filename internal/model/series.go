package model

// ValueType distinguishes observed values from forecast extensions on a
// time series.
type ValueType string

const (
	ValueObserved ValueType = "QCEW"
	ValueForecast ValueType = "Forecast"
)

// IndustryEmployment is one NAICS-year employment observation from the
// county employment census. Employment is nil when the cell is suppressed
// in the published workbook.
type IndustryEmployment struct {
	NAICS      string   `json:"naics_code"`
	Year       int      `json:"year"`
	Employment *float64 `json:"employment"`
}

// Suppression is one suppressed NAICS-year cell recorded for audit. The
// aggregator counts a suppressed cell as zero contribution, so the audit
// trail is the only place the gap remains visible.
type Suppression struct {
	NAICS     string `json:"naics_code"`
	SegmentID int    `json:"segment_id"`
	Year      int    `json:"year"`
}

// AttributionShare is the automotive share applied to a 4-digit NAICS code.
// Shares are normalized to the [0,1] range at ingest; codes published more
// than once carry the mean of their reported shares.
type AttributionShare struct {
	Source Attribution `json:"source"`
	NAICS  string      `json:"naics_code"`
	Share  float64     `json:"share"`
}

// SegmentPoint is one segment-year value on a supply-chain employment
// series. Observed rows have an empty Source and nil AppliedYoYPct;
// forecast rows record the growth source and the rate that produced them.
type SegmentPoint struct {
	SegmentID     int          `json:"segment_id"`
	Segment       string       `json:"segment_name"`
	Year          int          `json:"year"`
	Employment    float64      `json:"employment"`
	ValueType     ValueType    `json:"value_type"`
	Source        GrowthSource `json:"forecast_source,omitempty"`
	AppliedYoYPct *float64     `json:"applied_yoy_pct,omitempty"`
}

// StagePoint is the stage-level counterpart of SegmentPoint.
type StagePoint struct {
	Stage         string       `json:"stage"`
	Year          int          `json:"year"`
	Employment    float64      `json:"employment"`
	ValueType     ValueType    `json:"value_type"`
	Source        GrowthSource `json:"forecast_source,omitempty"`
	AppliedYoYPct *float64     `json:"applied_yoy_pct,omitempty"`
}

// SegmentRate is a year-over-year growth rate for one segment from one
// growth source. Pct is nil when the prior year of the source series was
// zero or missing.
type SegmentRate struct {
	Source    GrowthSource `json:"source"`
	SegmentID int          `json:"segment_id"`
	Year      int          `json:"year"`
	Pct       *float64     `json:"yoy_pct"`
}

// StageRate is the stage-level counterpart of SegmentRate.
type StageRate struct {
	Source GrowthSource `json:"source"`
	Stage  string       `json:"stage"`
	Year   int          `json:"year"`
	Pct    *float64     `json:"yoy_pct"`
}

// AttributionAudit is one NAICS-year row of the trail behind the segment
// shares: the census employment, the share the definition table published
// for the code, and the attributable employment it implies. Share and
// EmploymentAdjusted are nil when the table has no row for the code; such
// industries still roll into their segment at the segment's weighted
// share, and the nil marks the coverage gap. Suppressed census cells are
// absent here; the suppression audit records those.
type AttributionAudit struct {
	Source             Attribution `json:"source"`
	NAICS              string      `json:"naics_code"`
	SegmentID          int         `json:"segment_id"`
	Year               int         `json:"year"`
	EmploymentRaw      float64     `json:"employment_raw"`
	Share              *float64    `json:"share"`
	EmploymentAdjusted *float64    `json:"employment_adjusted"`
}

// SegmentDiagnostics records how the attribution step reshaped one segment:
// raw versus adjusted employment and the spread of shares across the
// segment's member NAICS codes. ShareWeighted above 1 indicates a share
// table problem and is flagged at report time.
type SegmentDiagnostics struct {
	Source             Attribution `json:"source"`
	SegmentID          int         `json:"segment_id"`
	Segment            string      `json:"segment_name"`
	EmploymentRaw      float64     `json:"employment_qcew_raw"`
	EmploymentAdjusted float64     `json:"employment_adjusted"`
	NAICSCount         int         `json:"naics_count"`
	MatchedCount       int         `json:"matched_count"`
	ShareMin           float64     `json:"share_min"`
	ShareMax           float64     `json:"share_max"`
	ShareWeighted      float64     `json:"share_weighted"`
}
