package growth

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

type endpoints struct {
	base    *float64
	horizon *float64
}

func (ep endpoints) usable() bool {
	return ep.base != nil && ep.horizon != nil && *ep.base > 0
}

// blsRates derives a constant year-over-year rate per segment from the
// national staffing rollup's all-occupations totals:
// (emp_horizon / emp_base)^(1/span) - 1, expanded across every forecast
// year. Stage rates come from stage-summed endpoints, restricted to
// segments where both endpoints are published so the sums stay
// comparable.
func (e *Extender) blsRates(ctx context.Context) (*RatesResult, error) {
	rows, err := e.store.Staffing(ctx, store.StaffingUS)
	if err != nil {
		return nil, eris.Wrap(err, "growth: load national staffing")
	}
	if len(rows) == 0 {
		return nil, eris.New("growth: no national staffing staged; run ingest first")
	}

	bySegment := make(map[int]*endpoints)
	for _, r := range rows {
		if !r.IsTotal {
			continue
		}
		ep := bySegment[r.SegmentID]
		if ep == nil {
			ep = &endpoints{}
			bySegment[r.SegmentID] = ep
		}
		v := r.Employment
		switch r.Year {
		case e.baseYear:
			ep.base = &v
		case e.horizonYear:
			ep.horizon = &v
		}
	}
	if len(bySegment) == 0 {
		return nil, eris.New("growth: national staffing has no all-occupations totals")
	}

	span := e.horizonYear - e.baseYear
	res := &RatesResult{
		Source:    model.GrowthBLS,
		FirstYear: e.baseYear + 1,
		LastYear:  e.horizonYear,
	}

	segIDs := make([]int, 0, len(bySegment))
	for id := range bySegment {
		segIDs = append(segIDs, id)
	}
	sort.Ints(segIDs)

	var segRates []model.SegmentRate
	for _, id := range segIDs {
		ep := bySegment[id]
		var pct *float64
		if ep.usable() {
			v := (math.Pow(*ep.horizon / *ep.base, 1/float64(span)) - 1) * 100
			pct = &v
		} else {
			res.MissingRates += span
			zap.L().Warn("growth: segment is missing a staffing endpoint, rate unavailable",
				zap.Int("segment_id", id),
				zap.Bool("has_base", ep.base != nil),
				zap.Bool("has_horizon", ep.horizon != nil),
			)
		}
		for y := e.baseYear + 1; y <= e.horizonYear; y++ {
			segRates = append(segRates, model.SegmentRate{
				Source: model.GrowthBLS, SegmentID: id, Year: y, Pct: pct,
			})
		}
	}

	stageEnds := make(map[string]*endpoints)
	for _, id := range segIDs {
		ep := bySegment[id]
		if !ep.usable() {
			continue
		}
		seg, ok := e.tax.Segment(id)
		if !ok {
			continue
		}
		sep := stageEnds[seg.Stage]
		if sep == nil {
			sep = &endpoints{base: new(float64), horizon: new(float64)}
			stageEnds[seg.Stage] = sep
		}
		*sep.base += *ep.base
		*sep.horizon += *ep.horizon
	}

	var stageRates []model.StageRate
	for _, stage := range taxonomy.StageOrder {
		sep := stageEnds[stage]
		var pct *float64
		switch {
		case sep != nil && sep.usable():
			v := (math.Pow(*sep.horizon / *sep.base, 1/float64(span)) - 1) * 100
			pct = &v
		default:
			res.MissingRates += span
			zap.L().Warn("growth: stage has no usable staffing endpoints, rate unavailable",
				zap.String("stage", stage))
		}
		for y := e.baseYear + 1; y <= e.horizonYear; y++ {
			stageRates = append(stageRates, model.StageRate{
				Source: model.GrowthBLS, Stage: stage, Year: y, Pct: pct,
			})
		}
	}

	if err := e.store.ReplaceGrowthRates(ctx, model.GrowthBLS, segRates, stageRates); err != nil {
		return nil, eris.Wrap(err, "growth: store bls rates")
	}

	res.SegmentRates = len(segRates)
	res.StageRates = len(stageRates)

	zap.L().Info("growth: bls rates built",
		zap.Int("segments", len(segIDs)),
		zap.Int("segment_rates", res.SegmentRates),
		zap.Int("stage_rates", res.StageRates),
		zap.Int("missing_rates", res.MissingRates),
	)
	return res, nil
}
