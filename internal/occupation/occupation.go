// Package occupation distributes each branch's segment totals across
// detailed occupations. The base-year staffing pattern fixes every
// occupation's starting share of its segment; where the national
// industry-occupation projection publishes the same occupation at both
// endpoints, the share drifts linearly toward the base share scaled by
// the national shift ratio. Shares are never renormalized after the base
// year, so the gap between an occupation sum and its segment total is a
// direct read on share coverage, which the validation pass measures
// against the configured tolerance.
package occupation

import (
	"github.com/sells-group/workforce-cli/internal/store"
)

// AggregateLabel names the cross-segment rollup rows emitted alongside
// the per-segment forecasts.
const AggregateLabel = "0. All Segments"

// Distributor turns branch segment series into occupation forecasts.
type Distributor struct {
	store        store.Store
	baseYear     int
	horizonYear  int
	tolerancePct float64
}

// New creates a Distributor for the baseYear..horizonYear window.
// tolerancePct bounds the allowed percent gap between an occupation sum
// and its segment total during validation.
func New(st store.Store, baseYear, horizonYear int, tolerancePct float64) *Distributor {
	return &Distributor{store: st, baseYear: baseYear, horizonYear: horizonYear, tolerancePct: tolerancePct}
}

// Result summarizes one distribution pass across every branch.
type Result struct {
	Branches          int `json:"branches"`
	Segments          int `json:"segments"`
	Occupations       int `json:"occupations"`
	Rows              int `json:"forecast_rows"`
	ShiftPairs        int `json:"shift_pairs"`
	MissingShifts     int `json:"missing_shifts"`
	SharelessSegments int `json:"shareless_segments,omitempty"`
}

// ValidateResult summarizes one validation pass across every branch.
type ValidateResult struct {
	Branches      int     `json:"branches"`
	Checks        int     `json:"checks"`
	Failures      int     `json:"failures"`
	MaxDivergence float64 `json:"max_divergence_pct"`
}
