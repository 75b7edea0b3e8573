package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
)

var occupationColumns = []string{
	"segment_id", "segment_name", "occupation_code", "occupation_title",
	"year", "employment", "attribution", "growth_source", "methodology", "has_bls_shift",
}

func occupationRow(f model.OccupationForecast) []string {
	return []string{
		strconv.Itoa(f.SegmentID), f.Segment, f.OccCode, f.OccTitle,
		strconv.Itoa(f.Year), floatStr(f.Employment),
		string(f.Attribution), string(f.Growth), f.Methodology().Key(),
		strconv.FormatBool(f.HasShiftData),
	}
}

func (r *Reporter) writeOccupations(ctx context.Context, res *Result) error {
	var all []model.OccupationForecast
	for _, m := range model.AllMethodologies() {
		branch, err := r.store.OccupationForecasts(ctx, m)
		if err != nil {
			return eris.Wrapf(err, "report: load %s forecasts", m.Key())
		}
		all = append(all, branch...)
	}
	if len(all) == 0 {
		zap.L().Warn("report: no occupation forecasts staged, skipped")
		return nil
	}

	rows := make([][]string, 0, len(all))
	var snapshot [][]string
	for _, f := range all {
		row := occupationRow(f)
		rows = append(rows, row)
		if f.Year == r.snapshotYear {
			snapshot = append(snapshot, row)
		}
	}

	name := fmt.Sprintf("occupation_forecasts_%d_%d.csv", r.baseYear, r.horizonYear)
	if err := r.writeCSV(res, name, occupationColumns, rows); err != nil {
		return err
	}
	if err := r.writeCSV(res, fmt.Sprintf("occupation_snapshot_%d.csv", r.snapshotYear), occupationColumns, snapshot); err != nil {
		return err
	}
	return r.writeSensitivity(res, all)
}

var sensitivityColumns = []string{
	"segment_id", "segment_name", "occupation_code", "occupation_title", "year",
	"branches", "employment_min", "employment_max", "employment_mean", "employment_std",
}

// writeSensitivity summarizes the spread of each occupation-segment-year
// estimate across the methodology branches. The standard deviation is the
// sample form and left blank for cells a single branch produced.
func (r *Reporter) writeSensitivity(res *Result, all []model.OccupationForecast) error {
	type cellKey struct {
		segment int
		occ     string
		year    int
	}
	type cell struct {
		segment string
		title   string
		values  []float64
	}

	cells := make(map[cellKey]*cell)
	for _, f := range all {
		k := cellKey{segment: f.SegmentID, occ: f.OccCode, year: f.Year}
		c := cells[k]
		if c == nil {
			c = &cell{segment: f.Segment, title: f.OccTitle}
			cells[k] = c
		}
		c.values = append(c.values, f.Employment)
	}

	keys := make([]cellKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ki, kj := keys[i], keys[j]
		if ki.segment != kj.segment {
			return ki.segment < kj.segment
		}
		if ki.occ != kj.occ {
			return ki.occ < kj.occ
		}
		return ki.year < kj.year
	})

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		c := cells[k]
		lo, hi, sum := c.values[0], c.values[0], 0.0
		for _, v := range c.values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			sum += v
		}
		mean := sum / float64(len(c.values))
		std := ""
		if len(c.values) > 1 {
			var ss float64
			for _, v := range c.values {
				d := v - mean
				ss += d * d
			}
			std = floatStr(math.Sqrt(ss / float64(len(c.values)-1)))
		}
		rows = append(rows, []string{
			strconv.Itoa(k.segment), c.segment, k.occ, c.title, strconv.Itoa(k.year),
			strconv.Itoa(len(c.values)),
			floatStr(lo), floatStr(hi), floatStr(mean), std,
		})
	}
	return r.writeCSV(res, "occupation_sensitivity.csv", sensitivityColumns, rows)
}
