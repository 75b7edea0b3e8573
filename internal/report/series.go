package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
)

var segmentSeriesColumns = []string{
	"segment_id", "segment_name", "year", "employment",
	"value_type", "growth_source", "applied_yoy_pct",
}

var stageSeriesColumns = []string{
	"stage", "year", "employment",
	"value_type", "growth_source", "applied_yoy_pct",
}

func segmentSeriesRow(p model.SegmentPoint) []string {
	return []string{
		strconv.Itoa(p.SegmentID), p.Segment, strconv.Itoa(p.Year),
		floatStr(p.Employment), string(p.ValueType), string(p.Source), pctStr(p.AppliedYoYPct),
	}
}

func stageSeriesRow(p model.StagePoint) []string {
	return []string{
		p.Stage, strconv.Itoa(p.Year),
		floatStr(p.Employment), string(p.ValueType), string(p.Source), pctStr(p.AppliedYoYPct),
	}
}

func (r *Reporter) writeSeries(ctx context.Context, res *Result) error {
	rawSeg, err := r.store.SegmentSeries(ctx, store.SeriesKey{})
	if err != nil {
		return eris.Wrap(err, "report: load census rollup")
	}
	if len(rawSeg) == 0 {
		zap.L().Warn("report: no census rollup staged, skipping raw series files")
	} else {
		rows := make([][]string, 0, len(rawSeg))
		for _, p := range rawSeg {
			rows = append(rows, segmentSeriesRow(p))
		}
		if err := r.writeCSV(res, "segment_series_qcew.csv", segmentSeriesColumns, rows); err != nil {
			return err
		}

		rawStg, err := r.store.StageSeries(ctx, store.SeriesKey{})
		if err != nil {
			return eris.Wrap(err, "report: load census stage rollup")
		}
		rows = rows[:0]
		for _, p := range rawStg {
			rows = append(rows, stageSeriesRow(p))
		}
		if err := r.writeCSV(res, "stage_series_qcew.csv", stageSeriesColumns, rows); err != nil {
			return err
		}
	}

	segBranches := make(map[model.Methodology][]model.SegmentPoint)
	stgBranches := make(map[model.Methodology][]model.StagePoint)
	for _, m := range model.AllMethodologies() {
		key := store.SeriesKey{Attribution: m.Attribution, Growth: m.Growth}
		seg, err := r.store.SegmentSeries(ctx, key)
		if err != nil {
			return eris.Wrapf(err, "report: load %s segment series", m.Key())
		}
		if len(seg) == 0 {
			zap.L().Warn("report: branch series not staged, skipped",
				zap.String("methodology", m.Key()))
			continue
		}
		stg, err := r.store.StageSeries(ctx, key)
		if err != nil {
			return eris.Wrapf(err, "report: load %s stage series", m.Key())
		}
		segBranches[m] = seg
		stgBranches[m] = stg

		rows := make([][]string, 0, len(seg))
		for _, p := range seg {
			rows = append(rows, segmentSeriesRow(p))
		}
		if err := r.writeCSV(res, fmt.Sprintf("segment_series_%s.csv", m.Key()), segmentSeriesColumns, rows); err != nil {
			return err
		}
		rows = rows[:0]
		for _, p := range stg {
			rows = append(rows, stageSeriesRow(p))
		}
		if err := r.writeCSV(res, fmt.Sprintf("stage_series_%s.csv", m.Key()), stageSeriesColumns, rows); err != nil {
			return err
		}
	}

	compareSegCols := append([]string{"methodology"}, segmentSeriesColumns...)
	compareStgCols := append([]string{"methodology"}, stageSeriesColumns...)
	var combined [][]string
	for _, attr := range model.AllAttributions() {
		segRows := compareSegmentRows(attr, segBranches)
		if len(segRows) == 0 {
			continue
		}
		if err := r.writeCSV(res, fmt.Sprintf("segment_series_%s_compare.csv", attr), compareSegCols, segRows); err != nil {
			return err
		}
		if err := r.writeCSV(res, fmt.Sprintf("stage_series_%s_compare.csv", attr), compareStgCols, compareStageRows(attr, stgBranches)); err != nil {
			return err
		}
		combined = append(combined, segRows...)
	}
	if len(combined) > 0 {
		if err := r.writeCSV(res, "segment_series_lightcast_vs_bea.csv", compareSegCols, combined); err != nil {
			return err
		}
	}
	return nil
}

// compareSegmentRows stacks one attribution's branch series under a
// methodology tag. The shared observed history is written once, tagged
// "<attribution>_qcew", so the stack is a clean concatenation.
func compareSegmentRows(attr model.Attribution, branches map[model.Methodology][]model.SegmentPoint) [][]string {
	var rows [][]string
	observedDone := false
	for _, g := range model.AllGrowthSources() {
		m := model.Methodology{Attribution: attr, Growth: g}
		pts := branches[m]
		if len(pts) == 0 {
			continue
		}
		for _, p := range pts {
			if p.ValueType == model.ValueObserved {
				if observedDone {
					continue
				}
				rows = append(rows, append([]string{string(attr) + "_qcew"}, segmentSeriesRow(p)...))
				continue
			}
			rows = append(rows, append([]string{m.Key()}, segmentSeriesRow(p)...))
		}
		observedDone = true
	}
	return rows
}

func compareStageRows(attr model.Attribution, branches map[model.Methodology][]model.StagePoint) [][]string {
	var rows [][]string
	observedDone := false
	for _, g := range model.AllGrowthSources() {
		m := model.Methodology{Attribution: attr, Growth: g}
		pts := branches[m]
		if len(pts) == 0 {
			continue
		}
		for _, p := range pts {
			if p.ValueType == model.ValueObserved {
				if observedDone {
					continue
				}
				rows = append(rows, append([]string{string(attr) + "_qcew"}, stageSeriesRow(p)...))
				continue
			}
			rows = append(rows, append([]string{m.Key()}, stageSeriesRow(p)...))
		}
		observedDone = true
	}
	return rows
}
