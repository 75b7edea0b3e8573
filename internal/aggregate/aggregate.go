// Package aggregate builds the observed employment series: it rolls the
// staged 4-digit NAICS census counts up to the ten supply-chain segments
// and the three stages. Every later pipeline step scales, extends, or
// distributes the series produced here.
package aggregate

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

// Aggregator sums industry employment into segment and stage series.
// Suppressed cells contribute zero and are written to the suppression
// audit table; an industry code the taxonomy does not cover aborts the
// stage rather than dropping jobs silently.
type Aggregator struct {
	store store.Store
	tax   *taxonomy.Taxonomy
}

// New creates an Aggregator over staged census data.
func New(st store.Store, tax *taxonomy.Taxonomy) *Aggregator {
	return &Aggregator{store: st, tax: tax}
}

// Result summarizes one aggregation pass.
type Result struct {
	Segments        int `json:"segments"`
	SegmentPoints   int `json:"segment_points"`
	StagePoints     int `json:"stage_points"`
	FirstYear       int `json:"first_year"`
	LastYear        int `json:"last_year"`
	SuppressedCells int `json:"suppressed_cells"`
	FullySuppressed int `json:"fully_suppressed_segment_years"`
}

type cellKey struct {
	segment int
	year    int
}

type cell struct {
	sum        float64
	members    int
	suppressed int
}

// Run aggregates the staged industry employment into the raw observed
// segment and stage series and replaces them in the store, along with the
// suppression audit rows. The observed rollup is stored under the empty
// series key; attribution- and growth-stamped variants come from later
// stages.
func (a *Aggregator) Run(ctx context.Context) (*Result, error) {
	rows, err := a.store.IndustryEmployment(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load industry employment")
	}
	if len(rows) == 0 {
		return nil, eris.New("aggregate: no industry employment staged; run ingest first")
	}

	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.NAICS)
	}
	if err := a.tax.RequireAll(codes); err != nil {
		return nil, eris.Wrap(err, "aggregate: census coverage check")
	}

	cells := make(map[cellKey]*cell)
	years := make(map[int]bool)
	var audit []model.Suppression

	for _, r := range rows {
		seg, ok := a.tax.SegmentFor(r.NAICS)
		if !ok {
			continue // RequireAll vetted coverage above
		}
		years[r.Year] = true

		k := cellKey{segment: seg.ID, year: r.Year}
		c := cells[k]
		if c == nil {
			c = &cell{}
			cells[k] = c
		}
		c.members++
		if r.Employment == nil {
			c.suppressed++
			audit = append(audit, model.Suppression{NAICS: r.NAICS, SegmentID: seg.ID, Year: r.Year})
			continue
		}
		c.sum += *r.Employment
	}

	yearList := make([]int, 0, len(years))
	for y := range years {
		yearList = append(yearList, y)
	}
	sort.Ints(yearList)

	res := &Result{
		FirstYear:       yearList[0],
		LastYear:        yearList[len(yearList)-1],
		SuppressedCells: len(audit),
	}

	type stageKey struct {
		stage string
		year  int
	}
	stageCells := make(map[stageKey]*cell)

	var segPoints []model.SegmentPoint
	for _, seg := range a.tax.Segments() {
		emitted := false
		for _, y := range yearList {
			c, ok := cells[cellKey{segment: seg.ID, year: y}]
			if !ok {
				continue
			}
			emitted = true
			if c.suppressed == c.members {
				res.FullySuppressed++
				zap.L().Warn("aggregate: segment-year fully suppressed, carrying zero",
					zap.Int("segment_id", seg.ID),
					zap.String("segment", seg.Label),
					zap.Int("year", y),
					zap.Int("members", c.members),
				)
			}
			segPoints = append(segPoints, model.SegmentPoint{
				SegmentID:  seg.ID,
				Segment:    seg.Label,
				Year:       y,
				Employment: c.sum,
				ValueType:  model.ValueObserved,
			})

			sk := stageKey{stage: seg.Stage, year: y}
			sc := stageCells[sk]
			if sc == nil {
				sc = &cell{}
				stageCells[sk] = sc
			}
			sc.sum += c.sum
			sc.members += c.members
			sc.suppressed += c.suppressed
		}
		if emitted {
			res.Segments++
		}
	}

	var stagePoints []model.StagePoint
	for _, stage := range taxonomy.StageOrder {
		for _, y := range yearList {
			c, ok := stageCells[stageKey{stage: stage, year: y}]
			if !ok {
				continue
			}
			stagePoints = append(stagePoints, model.StagePoint{
				Stage:      stage,
				Year:       y,
				Employment: c.sum,
				ValueType:  model.ValueObserved,
			})
		}
	}

	sort.Slice(audit, func(i, j int) bool {
		if audit[i].NAICS != audit[j].NAICS {
			return audit[i].NAICS < audit[j].NAICS
		}
		return audit[i].Year < audit[j].Year
	})

	if err := a.store.ReplaceSegmentSeries(ctx, store.SeriesKey{}, segPoints); err != nil {
		return nil, eris.Wrap(err, "aggregate: store segment series")
	}
	if err := a.store.ReplaceStageSeries(ctx, store.SeriesKey{}, stagePoints); err != nil {
		return nil, eris.Wrap(err, "aggregate: store stage series")
	}
	if err := a.store.ReplaceSuppressions(ctx, audit); err != nil {
		return nil, eris.Wrap(err, "aggregate: store suppression audit")
	}

	res.SegmentPoints = len(segPoints)
	res.StagePoints = len(stagePoints)

	zap.L().Info("aggregate: observed series built",
		zap.Int("segments", res.Segments),
		zap.Int("segment_points", res.SegmentPoints),
		zap.Int("stage_points", res.StagePoints),
		zap.Int("first_year", res.FirstYear),
		zap.Int("last_year", res.LastYear),
		zap.Int("suppressed_cells", res.SuppressedCells),
	)
	return res, nil
}
