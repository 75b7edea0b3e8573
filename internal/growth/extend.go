package growth

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

// ExtendResult summarizes one extension pass.
type ExtendResult struct {
	Attribution   model.Attribution  `json:"attribution"`
	Growth        model.GrowthSource `json:"growth_source"`
	Segments      int                `json:"segments"`
	Stages        int                `json:"stages"`
	SegmentPoints int                `json:"segment_points"`
	StagePoints   int                `json:"stage_points"`
	MissingRates  int                `json:"missing_rates"`
	Unanchored    int                `json:"unanchored_series"`
}

// Extend walks one attribution series forward from the base year using
// one source's staged rates and replaces the combined history-plus-
// forecast series for that branch. A year with no usable rate carries the
// prior level forward and is flagged with an empty applied rate; a
// published observed level always wins over an extension for the same
// year. Series with no base-year level are left unextended.
func (e *Extender) Extend(ctx context.Context, attribution model.Attribution, growth model.GrowthSource) (*ExtendResult, error) {
	obsKey := store.SeriesKey{Attribution: attribution}
	segObs, err := e.store.SegmentSeries(ctx, obsKey)
	if err != nil {
		return nil, eris.Wrapf(err, "growth: load %s segment series", attribution)
	}
	if len(segObs) == 0 {
		return nil, eris.Errorf("growth: no %s-adjusted series; run attribution first", attribution)
	}
	stageObs, err := e.store.StageSeries(ctx, obsKey)
	if err != nil {
		return nil, eris.Wrapf(err, "growth: load %s stage series", attribution)
	}

	segRates, err := e.store.SegmentRates(ctx, growth)
	if err != nil {
		return nil, eris.Wrapf(err, "growth: load %s segment rates", growth)
	}
	stageRates, err := e.store.StageRates(ctx, growth)
	if err != nil {
		return nil, eris.Wrapf(err, "growth: load %s stage rates", growth)
	}
	if len(segRates) == 0 && len(stageRates) == 0 {
		return nil, eris.Errorf("growth: no %s growth rates staged; build rates first", growth)
	}

	segPct := make(map[segmentYear]*float64, len(segRates))
	for _, r := range segRates {
		segPct[segmentYear{segment: r.SegmentID, year: r.Year}] = r.Pct
	}
	stagePct := make(map[stageYear]*float64, len(stageRates))
	for _, r := range stageRates {
		stagePct[stageYear{stage: r.Stage, year: r.Year}] = r.Pct
	}

	res := &ExtendResult{Attribution: attribution, Growth: growth}

	type series struct {
		label  string
		byYear map[int]float64
	}
	segSeries := make(map[int]*series)
	for _, p := range segObs {
		s := segSeries[p.SegmentID]
		if s == nil {
			s = &series{byYear: make(map[int]float64)}
			segSeries[p.SegmentID] = s
		}
		s.label = p.Segment
		s.byYear[p.Year] = p.Employment
	}
	segIDs := make([]int, 0, len(segSeries))
	for id := range segSeries {
		segIDs = append(segIDs, id)
	}
	sort.Ints(segIDs)

	segPoints := append([]model.SegmentPoint{}, segObs...)
	for _, id := range segIDs {
		s := segSeries[id]
		level, ok := s.byYear[e.baseYear]
		if !ok {
			res.Unanchored++
			zap.L().Warn("growth: segment has no base-year level, not extended",
				zap.String("attribution", string(attribution)),
				zap.String("growth", string(growth)),
				zap.Int("segment_id", id),
				zap.Int("base_year", e.baseYear),
			)
			continue
		}
		res.Segments++
		for y := e.baseYear + 1; y <= e.horizonYear; y++ {
			if v, ok := s.byYear[y]; ok {
				level = v // published level wins over an extension
				continue
			}
			pct := segPct[segmentYear{segment: id, year: y}]
			if pct != nil {
				level *= 1 + *pct/100
			} else {
				res.MissingRates++
				zap.L().Warn("growth: missing segment rate, holding level flat",
					zap.String("attribution", string(attribution)),
					zap.String("growth", string(growth)),
					zap.Int("segment_id", id),
					zap.Int("year", y),
				)
			}
			segPoints = append(segPoints, model.SegmentPoint{
				SegmentID:     id,
				Segment:       s.label,
				Year:          y,
				Employment:    level,
				ValueType:     model.ValueForecast,
				Source:        growth,
				AppliedYoYPct: pct,
			})
		}
	}

	stageSeries := make(map[string]map[int]float64)
	for _, p := range stageObs {
		m := stageSeries[p.Stage]
		if m == nil {
			m = make(map[int]float64)
			stageSeries[p.Stage] = m
		}
		m[p.Year] = p.Employment
	}

	stagePoints := append([]model.StagePoint{}, stageObs...)
	for _, stage := range taxonomy.StageOrder {
		byYear, ok := stageSeries[stage]
		if !ok {
			continue
		}
		level, ok := byYear[e.baseYear]
		if !ok {
			res.Unanchored++
			zap.L().Warn("growth: stage has no base-year level, not extended",
				zap.String("attribution", string(attribution)),
				zap.String("growth", string(growth)),
				zap.String("stage", stage),
				zap.Int("base_year", e.baseYear),
			)
			continue
		}
		res.Stages++
		for y := e.baseYear + 1; y <= e.horizonYear; y++ {
			if v, ok := byYear[y]; ok {
				level = v
				continue
			}
			pct := stagePct[stageYear{stage: stage, year: y}]
			if pct != nil {
				level *= 1 + *pct/100
			} else {
				res.MissingRates++
				zap.L().Warn("growth: missing stage rate, holding level flat",
					zap.String("attribution", string(attribution)),
					zap.String("growth", string(growth)),
					zap.String("stage", stage),
					zap.Int("year", y),
				)
			}
			stagePoints = append(stagePoints, model.StagePoint{
				Stage:         stage,
				Year:          y,
				Employment:    level,
				ValueType:     model.ValueForecast,
				Source:        growth,
				AppliedYoYPct: pct,
			})
		}
	}

	branchKey := store.SeriesKey{Attribution: attribution, Growth: growth}
	if err := e.store.ReplaceSegmentSeries(ctx, branchKey, segPoints); err != nil {
		return nil, eris.Wrapf(err, "growth: store %s/%s segment series", attribution, growth)
	}
	if err := e.store.ReplaceStageSeries(ctx, branchKey, stagePoints); err != nil {
		return nil, eris.Wrapf(err, "growth: store %s/%s stage series", attribution, growth)
	}

	res.SegmentPoints = len(segPoints)
	res.StagePoints = len(stagePoints)

	zap.L().Info("growth: series extended",
		zap.String("attribution", string(attribution)),
		zap.String("growth", string(growth)),
		zap.Int("segments", res.Segments),
		zap.Int("stages", res.Stages),
		zap.Int("segment_points", res.SegmentPoints),
		zap.Int("stage_points", res.StagePoints),
		zap.Int("missing_rates", res.MissingRates),
		zap.Int("unanchored", res.Unanchored),
	)
	return res, nil
}
