package occupation

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
)

// shareRow is one occupation's share path within a segment: the base-year
// staffing share and the national shift ratio applied to it across the
// horizon. gf is 1 when no usable shift pair exists.
type shareRow struct {
	occCode  string
	occTitle string
	base     float64
	gf       float64
	hasShift bool
}

type shareTable struct {
	bySegment  map[int][]shareRow
	shiftPairs int
	missing    int
}

type segmentOcc struct {
	segment int
	occ     string
}

// buildShares fixes every occupation's base share from the base-year
// detailed staffing rows, renormalized to sum to one within each
// segment, and attaches the national shift ratio where the projection
// publishes both endpoints with a positive base share.
func (d *Distributor) buildShares(ctx context.Context) (*shareTable, error) {
	mcda, err := d.store.Staffing(ctx, store.StaffingMCDA)
	if err != nil {
		return nil, eris.Wrap(err, "occupation: load staffing pattern")
	}
	if len(mcda) == 0 {
		return nil, eris.New("occupation: no staffing pattern staged; run ingest first")
	}

	type baseRow struct {
		occCode, occTitle string
		employment        float64
	}
	baseRows := make(map[int][]baseRow)
	segSums := make(map[int]float64)
	for _, r := range mcda {
		if r.Year != d.baseYear || r.OccLevel != model.OccLevelDetailed || r.IsTotal {
			continue
		}
		baseRows[r.SegmentID] = append(baseRows[r.SegmentID], baseRow{
			occCode: r.OccCode, occTitle: r.OccTitle, employment: r.Employment,
		})
		segSums[r.SegmentID] += r.Employment
	}
	if len(baseRows) == 0 {
		return nil, eris.Errorf("occupation: staffing pattern has no detailed rows for %d", d.baseYear)
	}

	shifts, err := d.shiftPairs(ctx)
	if err != nil {
		return nil, err
	}

	tab := &shareTable{bySegment: make(map[int][]shareRow, len(baseRows))}
	for segID, rows := range baseRows {
		sum := segSums[segID]
		if sum <= 0 {
			zap.L().Warn("occupation: segment staffing sums to zero, skipped",
				zap.Int("segment_id", segID))
			continue
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].occCode < rows[j].occCode })
		out := make([]shareRow, 0, len(rows))
		for _, r := range rows {
			sr := shareRow{occCode: r.occCode, occTitle: r.occTitle, base: r.employment / sum, gf: 1}
			if sh, ok := shifts[segmentOcc{segment: segID, occ: r.occCode}]; ok && sh.ShareBase > 0 {
				sr.gf = sh.ShareHorizon / sh.ShareBase
				sr.hasShift = true
				tab.shiftPairs++
			} else {
				tab.missing++
			}
			out = append(out, sr)
		}
		tab.bySegment[segID] = out
	}
	return tab, nil
}

// shiftPairs derives each segment-occupation's national share at the base
// and horizon years from the staged industry-occupation projection.
// Shares divide by the all-occupations total row, or by the detailed sum
// when no total row was published. Pairs missing either endpoint are
// omitted, so the caller falls back to a constant share.
func (d *Distributor) shiftPairs(ctx context.Context) (map[segmentOcc]model.OccupationShift, error) {
	us, err := d.store.Staffing(ctx, store.StaffingUS)
	if err != nil {
		return nil, eris.Wrap(err, "occupation: load national staffing")
	}
	if len(us) == 0 {
		zap.L().Warn("occupation: no national staffing staged, holding base shares constant")
		return nil, nil
	}

	type segYear struct {
		segment, year int
	}
	totals := make(map[segYear]float64)
	detSums := make(map[segYear]float64)
	emp := make(map[segmentOcc]map[int]float64)
	for _, r := range us {
		if r.Year != d.baseYear && r.Year != d.horizonYear {
			continue
		}
		if r.IsTotal {
			totals[segYear{segment: r.SegmentID, year: r.Year}] = r.Employment
			continue
		}
		if r.OccLevel != model.OccLevelDetailed {
			continue
		}
		detSums[segYear{segment: r.SegmentID, year: r.Year}] += r.Employment
		k := segmentOcc{segment: r.SegmentID, occ: r.OccCode}
		if emp[k] == nil {
			emp[k] = make(map[int]float64, 2)
		}
		emp[k][r.Year] = r.Employment
	}

	total := func(segment, year int) float64 {
		k := segYear{segment: segment, year: year}
		if t, ok := totals[k]; ok {
			return t
		}
		return detSums[k]
	}

	out := make(map[segmentOcc]model.OccupationShift, len(emp))
	for k, byYear := range emp {
		e24, ok24 := byYear[d.baseYear]
		e34, ok34 := byYear[d.horizonYear]
		if !ok24 || !ok34 {
			continue
		}
		t24, t34 := total(k.segment, d.baseYear), total(k.segment, d.horizonYear)
		if t24 <= 0 || t34 <= 0 {
			continue
		}
		out[k] = model.OccupationShift{
			SegmentID:    k.segment,
			OccCode:      k.occ,
			ShareBase:    e24 / t24,
			ShareHorizon: e34 / t34,
		}
	}
	return out, nil
}
