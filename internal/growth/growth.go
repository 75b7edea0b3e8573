// Package growth extends the attributed employment series past the base
// year. Two rate sources produce the forecast branches: year-over-year
// changes computed from the Moody's Michigan industry forecast, and a
// constant CAGR derived from the national staffing projection endpoints.
// Rates are staged first, then each attribution series is extended with
// value[y] = value[y-1] x (1 + rate/100).
package growth

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

// Extender computes growth rates and applies them to the adjusted series.
type Extender struct {
	store       store.Store
	tax         *taxonomy.Taxonomy
	baseYear    int
	horizonYear int
}

// New creates an Extender forecasting from baseYear through horizonYear.
func New(st store.Store, tax *taxonomy.Taxonomy, baseYear, horizonYear int) *Extender {
	return &Extender{store: st, tax: tax, baseYear: baseYear, horizonYear: horizonYear}
}

// RatesResult summarizes one rate-building pass.
type RatesResult struct {
	Source        model.GrowthSource `json:"source"`
	SegmentRates  int                `json:"segment_rates"`
	StageRates    int                `json:"stage_rates"`
	MissingRates  int                `json:"missing_rates"`
	UnmappedNAICS int                `json:"unmapped_naics,omitempty"`
	FirstYear     int                `json:"first_year"`
	LastYear      int                `json:"last_year"`
}

// BuildRates computes and stages the per-segment and per-stage rates for
// one growth source. Rows with no computable rate are staged with a nil
// percentage so the gap stays visible to the extension step.
func (e *Extender) BuildRates(ctx context.Context, source model.GrowthSource) (*RatesResult, error) {
	switch source {
	case model.GrowthMoody:
		return e.moodyRates(ctx)
	case model.GrowthBLS:
		return e.blsRates(ctx)
	default:
		return nil, eris.Errorf("growth: unknown rate source %q", source)
	}
}
