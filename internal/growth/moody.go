package growth

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

type segmentYear struct {
	segment int
	year    int
}

type stageYear struct {
	stage string
	year  int
}

// moodyRates rolls the Michigan per-NAICS Moody's employment series up to
// segment and stage levels and converts each level to year-over-year
// percent change. The series is reindexed over its full published year
// range, so a gap in the source produces nil rates for the gap year and
// the year after it rather than a change computed across the gap.
func (e *Extender) moodyRates(ctx context.Context) (*RatesResult, error) {
	rows, err := e.store.MoodysSeries(ctx, store.GeoMichigan, store.MetricEmployment)
	if err != nil {
		return nil, eris.Wrap(err, "growth: load moody employment series")
	}
	if len(rows) == 0 {
		return nil, eris.New("growth: no moody employment series staged; run ingest first")
	}

	segSum := make(map[segmentYear]float64)
	segSeen := make(map[segmentYear]bool)
	unmapped := make(map[string]bool)
	minYear, maxYear := 0, 0

	for _, r := range rows {
		seg, ok := e.tax.SegmentFor(r.NAICS)
		if !ok {
			unmapped[r.NAICS] = true
			continue
		}
		if minYear == 0 || r.Year < minYear {
			minYear = r.Year
		}
		if r.Year > maxYear {
			maxYear = r.Year
		}
		if r.Value == nil {
			continue
		}
		k := segmentYear{segment: seg.ID, year: r.Year}
		segSum[k] += *r.Value
		segSeen[k] = true
	}
	if len(segSeen) == 0 {
		return nil, eris.New("growth: moody employment series covers no assigned industries")
	}

	stageSum := make(map[stageYear]float64)
	stageSeen := make(map[stageYear]bool)
	for k := range segSeen {
		seg, ok := e.tax.Segment(k.segment)
		if !ok {
			continue
		}
		sk := stageYear{stage: seg.Stage, year: k.year}
		stageSum[sk] += segSum[k]
		stageSeen[sk] = true
	}

	res := &RatesResult{
		Source:        model.GrowthMoody,
		UnmappedNAICS: len(unmapped),
		FirstYear:     minYear + 1,
		LastYear:      maxYear,
	}

	var segRates []model.SegmentRate
	for _, seg := range e.tax.Segments() {
		covered := false
		for y := minYear; y <= maxYear; y++ {
			if segSeen[segmentYear{segment: seg.ID, year: y}] {
				covered = true
				break
			}
		}
		if !covered {
			continue
		}
		for y := minYear + 1; y <= maxYear; y++ {
			prev, cur := segmentYear{seg.ID, y - 1}, segmentYear{seg.ID, y}
			var pct *float64
			if segSeen[prev] && segSeen[cur] && segSum[prev] != 0 {
				v := (segSum[cur]/segSum[prev] - 1) * 100
				pct = &v
			} else {
				res.MissingRates++
			}
			segRates = append(segRates, model.SegmentRate{
				Source: model.GrowthMoody, SegmentID: seg.ID, Year: y, Pct: pct,
			})
		}
	}

	var stageRates []model.StageRate
	for _, stage := range taxonomy.StageOrder {
		covered := false
		for y := minYear; y <= maxYear; y++ {
			if stageSeen[stageYear{stage: stage, year: y}] {
				covered = true
				break
			}
		}
		if !covered {
			continue
		}
		for y := minYear + 1; y <= maxYear; y++ {
			prev, cur := stageYear{stage, y - 1}, stageYear{stage, y}
			var pct *float64
			if stageSeen[prev] && stageSeen[cur] && stageSum[prev] != 0 {
				v := (stageSum[cur]/stageSum[prev] - 1) * 100
				pct = &v
			} else {
				res.MissingRates++
			}
			stageRates = append(stageRates, model.StageRate{
				Source: model.GrowthMoody, Stage: stage, Year: y, Pct: pct,
			})
		}
	}

	if err := e.store.ReplaceGrowthRates(ctx, model.GrowthMoody, segRates, stageRates); err != nil {
		return nil, eris.Wrap(err, "growth: store moody rates")
	}

	res.SegmentRates = len(segRates)
	res.StageRates = len(stageRates)

	zap.L().Info("growth: moody rates built",
		zap.Int("segment_rates", res.SegmentRates),
		zap.Int("stage_rates", res.StageRates),
		zap.Int("missing_rates", res.MissingRates),
		zap.Int("unmapped_naics", res.UnmappedNAICS),
		zap.Int("first_year", res.FirstYear),
		zap.Int("last_year", res.LastYear),
	)
	return res, nil
}
