package occupation

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
)

type branchRows struct {
	rows      []model.OccupationForecast
	segments  map[int]bool
	shareless map[int]bool
}

// Run distributes every branch's segment totals across occupations and
// replaces the stored forecasts. The share table is built once; branches
// share no mutable state, so they are computed concurrently and persisted
// after the last one lands.
func (d *Distributor) Run(ctx context.Context) (*Result, error) {
	shares, err := d.buildShares(ctx)
	if err != nil {
		return nil, err
	}

	branches := model.AllMethodologies()
	byBranch := make([]*branchRows, len(branches))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range branches {
		g.Go(func() error {
			br, err := d.distribute(gctx, m, shares)
			if err != nil {
				return err
			}
			byBranch[i] = br
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, m := range branches {
		if err := d.store.ReplaceOccupationForecasts(ctx, m, byBranch[i].rows); err != nil {
			return nil, eris.Wrapf(err, "occupation: store %s forecasts", m.Key())
		}
	}

	res := &Result{
		Branches:      len(branches),
		ShiftPairs:    shares.shiftPairs,
		MissingShifts: shares.missing,
	}
	segs := make(map[int]bool)
	shareless := make(map[int]bool)
	for _, br := range byBranch {
		res.Rows += len(br.rows)
		for id := range br.segments {
			segs[id] = true
		}
		for id := range br.shareless {
			shareless[id] = true
		}
	}
	occs := make(map[string]bool)
	for id := range segs {
		for _, r := range shares.bySegment[id] {
			occs[r.occCode] = true
		}
	}
	res.Segments = len(segs)
	res.SharelessSegments = len(shareless)
	res.Occupations = len(occs)

	zap.L().Info("occupation: forecasts distributed",
		zap.Int("branches", res.Branches),
		zap.Int("segments", res.Segments),
		zap.Int("occupations", res.Occupations),
		zap.Int("rows", res.Rows),
		zap.Int("shift_pairs", res.ShiftPairs),
		zap.Int("missing_shifts", res.MissingShifts),
	)
	return res, nil
}

func (d *Distributor) distribute(ctx context.Context, m model.Methodology, tab *shareTable) (*branchRows, error) {
	pts, err := d.store.SegmentSeries(ctx, store.SeriesKey{Attribution: m.Attribution, Growth: m.Growth})
	if err != nil {
		return nil, eris.Wrapf(err, "occupation: load %s segment series", m.Key())
	}
	if len(pts) == 0 {
		return nil, eris.Errorf("occupation: no %s segment series; run the extender first", m.Key())
	}

	totals := make(map[int]map[int]float64)
	labels := make(map[int]string)
	for _, p := range pts {
		if p.Year < d.baseYear || p.Year > d.horizonYear {
			continue
		}
		if totals[p.SegmentID] == nil {
			totals[p.SegmentID] = make(map[int]float64)
		}
		totals[p.SegmentID][p.Year] = p.Employment
		labels[p.SegmentID] = p.Segment
	}

	segIDs := make([]int, 0, len(totals))
	for id := range totals {
		segIDs = append(segIDs, id)
	}
	sort.Ints(segIDs)

	br := &branchRows{segments: make(map[int]bool), shareless: make(map[int]bool)}
	span := float64(d.horizonYear - d.baseYear)
	for _, id := range segIDs {
		shareRows, ok := tab.bySegment[id]
		if !ok {
			br.shareless[id] = true
			zap.L().Warn("occupation: segment has no staffing shares, not distributed",
				zap.String("methodology", m.Key()),
				zap.Int("segment_id", id),
			)
			continue
		}
		br.segments[id] = true

		byYear := totals[id]
		years := make([]int, 0, len(byYear))
		for y := range byYear {
			years = append(years, y)
		}
		sort.Ints(years)

		for _, r := range shareRows {
			for _, y := range years {
				progress := float64(y-d.baseYear) / span
				share := r.base + (r.base*r.gf-r.base)*progress
				br.rows = append(br.rows, model.OccupationForecast{
					SegmentID:    id,
					Segment:      labels[id],
					OccCode:      r.occCode,
					OccTitle:     r.occTitle,
					Year:         y,
					Employment:   byYear[y] * share,
					Attribution:  m.Attribution,
					Growth:       m.Growth,
					HasShiftData: r.hasShift,
				})
			}
		}
	}

	br.rows = append(br.rows, aggregateRows(br.rows)...)
	return br, nil
}

// aggregateRows sums the per-segment rows into the segment-0 rollup.
// Titles come from the lowest contributing segment; the shift flag is set
// when any contributor carried one.
func aggregateRows(rows []model.OccupationForecast) []model.OccupationForecast {
	if len(rows) == 0 {
		return nil
	}
	type occYear struct {
		occ  string
		year int
	}
	sums := make(map[occYear]float64)
	titles := make(map[string]string)
	titleSeg := make(map[string]int)
	shifted := make(map[string]bool)
	for _, r := range rows {
		sums[occYear{occ: r.OccCode, year: r.Year}] += r.Employment
		if seg, ok := titleSeg[r.OccCode]; !ok || r.SegmentID < seg {
			titleSeg[r.OccCode] = r.SegmentID
			titles[r.OccCode] = r.OccTitle
		}
		if r.HasShiftData {
			shifted[r.OccCode] = true
		}
	}

	keys := make([]occYear, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].occ != keys[j].occ {
			return keys[i].occ < keys[j].occ
		}
		return keys[i].year < keys[j].year
	})

	out := make([]model.OccupationForecast, 0, len(keys))
	for _, k := range keys {
		out = append(out, model.OccupationForecast{
			SegmentID:    0,
			Segment:      AggregateLabel,
			OccCode:      k.occ,
			OccTitle:     titles[k.occ],
			Year:         k.year,
			Employment:   sums[k],
			Attribution:  rows[0].Attribution,
			Growth:       rows[0].Growth,
			HasShiftData: shifted[k.occ],
		})
	}
	return out
}
