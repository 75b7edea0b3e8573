package occupation

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
)

// Validate recomputes every branch's occupation sums against its segment
// totals and replaces the stored validation rows. Deviations beyond the
// tolerance are warned with the offending keys, never corrected; the
// rollup rows are excluded from the sums.
func (d *Distributor) Validate(ctx context.Context) (*ValidateResult, error) {
	type segmentYear struct {
		segment, year int
	}

	res := &ValidateResult{}
	for _, m := range model.AllMethodologies() {
		res.Branches++

		rows, err := d.store.OccupationForecasts(ctx, m)
		if err != nil {
			return nil, eris.Wrapf(err, "occupation: load %s forecasts", m.Key())
		}
		if len(rows) == 0 {
			return nil, eris.Errorf("occupation: no %s forecasts staged; run the distributor first", m.Key())
		}
		pts, err := d.store.SegmentSeries(ctx, store.SeriesKey{Attribution: m.Attribution, Growth: m.Growth})
		if err != nil {
			return nil, eris.Wrapf(err, "occupation: load %s segment series", m.Key())
		}

		totals := make(map[segmentYear]float64)
		labels := make(map[int]string)
		for _, p := range pts {
			if p.Year < d.baseYear || p.Year > d.horizonYear {
				continue
			}
			totals[segmentYear{segment: p.SegmentID, year: p.Year}] = p.Employment
			labels[p.SegmentID] = p.Segment
		}

		sums := make(map[segmentYear]float64)
		for _, r := range rows {
			if r.SegmentID == 0 {
				continue
			}
			sums[segmentYear{segment: r.SegmentID, year: r.Year}] += r.Employment
		}

		keys := make([]segmentYear, 0, len(sums))
		for k := range sums {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].segment != keys[j].segment {
				return keys[i].segment < keys[j].segment
			}
			return keys[i].year < keys[j].year
		})

		results := make([]model.ValidationResult, 0, len(keys))
		for _, k := range keys {
			total, ok := totals[k]
			if !ok {
				continue // series re-staged since distribution, nothing to compare
			}
			sum := sums[k]
			var pct float64
			if total != 0 {
				pct = (sum - total) / total * 100
			}
			pass := math.Abs(pct) < d.tolerancePct
			if !pass {
				res.Failures++
				zap.L().Warn("occupation: occupation sum off its segment total",
					zap.String("methodology", m.Key()),
					zap.Int("segment_id", k.segment),
					zap.Int("year", k.year),
					zap.Float64("pct_diff", pct),
				)
			}
			if a := math.Abs(pct); a > res.MaxDivergence {
				res.MaxDivergence = a
			}
			results = append(results, model.ValidationResult{
				Methodology:   m.Key(),
				SegmentID:     k.segment,
				Segment:       labels[k.segment],
				Year:          k.year,
				SegmentTotal:  total,
				OccupationSum: sum,
				PctDiff:       pct,
				Pass:          pass,
			})
		}
		if err := d.store.ReplaceValidationResults(ctx, m, results); err != nil {
			return nil, eris.Wrapf(err, "occupation: store %s validation", m.Key())
		}
		res.Checks += len(results)
	}

	zap.L().Info("occupation: validation complete",
		zap.Int("branches", res.Branches),
		zap.Int("checks", res.Checks),
		zap.Int("failures", res.Failures),
		zap.Float64("max_divergence_pct", res.MaxDivergence),
	)
	return res, nil
}
