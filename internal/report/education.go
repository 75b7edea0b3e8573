package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
)

// CombinedLabel names the cross-segment rows of the education summary.
const CombinedLabel = "All Segments Combined"

var educationGroupOrder = []model.EducationGroup{
	model.EducationHSOrLess,
	model.EducationSomeCollege,
	model.EducationBAPlus,
}

// writeEducation groups the two staged staffing vintages by typical entry
// education and writes per-segment employment, shares, and deltas plus
// the combined rows. Occupations without a profile or with an
// unrecognized education level are left out.
func (r *Reporter) writeEducation(ctx context.Context, res *Result) error {
	staffing, err := r.store.Staffing(ctx, store.StaffingMCDA)
	if err != nil {
		return eris.Wrap(err, "report: load staffing pattern")
	}
	if len(staffing) == 0 {
		zap.L().Warn("report: no staffing pattern staged, education summary skipped")
		return nil
	}
	profiles, err := r.store.OccupationProfiles(ctx)
	if err != nil {
		return eris.Wrap(err, "report: load occupation profiles")
	}
	if len(profiles) == 0 {
		zap.L().Warn("report: no occupation profiles staged, education summary skipped")
		return nil
	}

	yearSet := make(map[int]bool)
	for _, row := range staffing {
		if row.OccLevel == model.OccLevelDetailed && !row.IsTotal {
			yearSet[row.Year] = true
		}
	}
	if len(yearSet) < 2 {
		zap.L().Warn("report: need two staffing vintages for the education summary, skipped")
		return nil
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)
	prior, latest := years[0], years[len(years)-1]

	type segGroup struct {
		segment int
		group   model.EducationGroup
	}
	empPrior := make(map[segGroup]float64)
	empLatest := make(map[segGroup]float64)
	labels := make(map[int]string)
	present := make(map[segGroup]bool)
	matched, unmatched := 0, 0
	for _, row := range staffing {
		if row.OccLevel != model.OccLevelDetailed || row.IsTotal {
			continue
		}
		if row.Year != prior && row.Year != latest {
			continue
		}
		p, ok := profiles[row.OccCode]
		if !ok || p.EducationGroup == "" {
			unmatched++
			continue
		}
		matched++
		k := segGroup{segment: row.SegmentID, group: p.EducationGroup}
		present[k] = true
		labels[row.SegmentID] = row.Segment
		if row.Year == prior {
			empPrior[k] += row.Employment
		} else {
			empLatest[k] += row.Employment
		}
	}
	if matched == 0 {
		zap.L().Warn("report: no staffing rows matched an occupation profile, education summary skipped",
			zap.Int("unmatched", unmatched))
		return nil
	}

	header := []string{
		"segment", "edu_group",
		fmt.Sprintf("empl_%d", prior), fmt.Sprintf("empl_%d", latest),
		fmt.Sprintf("level_change_%d_%d", prior, latest),
		fmt.Sprintf("pct_change_%d_%d", prior, latest),
		fmt.Sprintf("share_%d", prior), fmt.Sprintf("share_%d", latest),
		fmt.Sprintf("share_of_change_%d_%d", prior, latest),
	}

	segIDs := make([]int, 0, len(labels))
	for id := range labels {
		segIDs = append(segIDs, id)
	}
	sort.Ints(segIDs)

	var rows [][]string
	for _, id := range segIDs {
		rows = append(rows, educationRows(labels[id], func(g model.EducationGroup) (float64, float64, bool) {
			k := segGroup{segment: id, group: g}
			return empPrior[k], empLatest[k], present[k]
		})...)
	}

	combPrior := make(map[model.EducationGroup]float64)
	combLatest := make(map[model.EducationGroup]float64)
	combPresent := make(map[model.EducationGroup]bool)
	for k := range present {
		combPrior[k.group] += empPrior[k]
		combLatest[k.group] += empLatest[k]
		combPresent[k.group] = true
	}
	rows = append(rows, educationRows(CombinedLabel, func(g model.EducationGroup) (float64, float64, bool) {
		return combPrior[g], combLatest[g], combPresent[g]
	})...)

	return r.writeCSV(res, "education_summary.csv", header, rows)
}

// educationRows renders one segment's group rows in the fixed group
// order. Ratios against a zero base stay blank.
func educationRows(label string, lookup func(model.EducationGroup) (prior, latest float64, ok bool)) [][]string {
	var totPrior, totLatest float64
	for _, g := range educationGroupOrder {
		p, l, ok := lookup(g)
		if !ok {
			continue
		}
		totPrior += p
		totLatest += l
	}
	totChange := totLatest - totPrior

	var rows [][]string
	for _, g := range educationGroupOrder {
		p, l, ok := lookup(g)
		if !ok {
			continue
		}
		change := l - p
		pctChange := ""
		if p > 0 {
			pctChange = floatStr((l/p - 1) * 100)
		}
		sharePrior := ""
		if totPrior > 0 {
			sharePrior = floatStr(p / totPrior)
		}
		shareLatest := ""
		if totLatest > 0 {
			shareLatest = floatStr(l / totLatest)
		}
		shareOfChange := ""
		if totChange != 0 {
			shareOfChange = floatStr(change / totChange)
		}
		rows = append(rows, []string{
			label, string(g),
			floatStr(p), floatStr(l), floatStr(change),
			pctChange, sharePrior, shareLatest, shareOfChange,
		})
	}
	return rows
}
