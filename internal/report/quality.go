package report

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var diagnosticsColumns = []string{
	"source", "segment_id", "segment_name",
	"employment_qcew_raw", "employment_adjusted",
	"naics_count", "matched_count",
	"share_min", "share_max", "share_weighted",
}

func (r *Reporter) writeDiagnostics(ctx context.Context, res *Result) error {
	diags, err := r.store.SegmentDiagnostics(ctx)
	if err != nil {
		return eris.Wrap(err, "report: load attribution diagnostics")
	}
	if len(diags) == 0 {
		zap.L().Warn("report: no attribution diagnostics staged, skipped")
		return nil
	}

	rows := make([][]string, 0, len(diags))
	for _, d := range diags {
		rows = append(rows, []string{
			string(d.Source), strconv.Itoa(d.SegmentID), d.Segment,
			floatStr(d.EmploymentRaw), floatStr(d.EmploymentAdjusted),
			strconv.Itoa(d.NAICSCount), strconv.Itoa(d.MatchedCount),
			floatStr(d.ShareMin), floatStr(d.ShareMax), floatStr(d.ShareWeighted),
		})
	}
	return r.writeCSV(res, "attribution_diagnostics.csv", diagnosticsColumns, rows)
}

var auditColumns = []string{
	"source", "naics_code", "segment_id", "year",
	"employment_raw", "share", "employment_adjusted",
}

// writeAudit renders the NAICS-level trail behind the segment shares.
// Codes the share table never covered keep empty share and adjusted
// cells, so coverage gaps read directly off the file.
func (r *Reporter) writeAudit(ctx context.Context, res *Result) error {
	rows, err := r.store.AttributionAudit(ctx)
	if err != nil {
		return eris.Wrap(err, "report: load attribution audit")
	}
	if len(rows) == 0 {
		zap.L().Warn("report: no attribution audit staged, skipped")
		return nil
	}

	out := make([][]string, 0, len(rows))
	for _, a := range rows {
		share, adjusted := "", ""
		if a.Share != nil {
			share = floatStr(*a.Share)
		}
		if a.EmploymentAdjusted != nil {
			adjusted = floatStr(*a.EmploymentAdjusted)
		}
		out = append(out, []string{
			string(a.Source), a.NAICS, strconv.Itoa(a.SegmentID), strconv.Itoa(a.Year),
			floatStr(a.EmploymentRaw), share, adjusted,
		})
	}
	return r.writeCSV(res, "attribution_audit.csv", auditColumns, out)
}

var suppressionColumns = []string{"naics_code", "segment_id", "year"}

// writeSuppressions always writes the audit file; an empty one documents
// that no cells were suppressed.
func (r *Reporter) writeSuppressions(ctx context.Context, res *Result) error {
	cells, err := r.store.Suppressions(ctx)
	if err != nil {
		return eris.Wrap(err, "report: load suppression audit")
	}

	rows := make([][]string, 0, len(cells))
	for _, c := range cells {
		rows = append(rows, []string{c.NAICS, strconv.Itoa(c.SegmentID), strconv.Itoa(c.Year)})
	}
	return r.writeCSV(res, "suppression_audit.csv", suppressionColumns, rows)
}

var validationColumns = []string{
	"methodology", "segment_id", "segment_name", "year",
	"segment_employment", "occupation_sum", "pct_diff", "pass",
}

func (r *Reporter) writeValidation(ctx context.Context, res *Result) error {
	results, err := r.store.ValidationResults(ctx)
	if err != nil {
		return eris.Wrap(err, "report: load validation results")
	}
	if len(results) == 0 {
		zap.L().Warn("report: no validation results staged, skipped")
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, v := range results {
		rows = append(rows, []string{
			v.Methodology, strconv.Itoa(v.SegmentID), v.Segment, strconv.Itoa(v.Year),
			floatStr(v.SegmentTotal), floatStr(v.OccupationSum),
			floatStr(v.PctDiff), strconv.FormatBool(v.Pass),
		})
	}
	return r.writeCSV(res, "validation_results.csv", validationColumns, rows)
}
