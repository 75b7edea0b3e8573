// Package report writes the staged pipeline results out as CSV files:
// per-branch segment and stage series with their comparison stacks, the
// attribution diagnostics with their NAICS-level share audit, the
// suppression audit, occupation forecasts with a snapshot-year extract
// and a cross-branch sensitivity summary, validation results, and the
// education-group summary. Outputs land in
// one configured directory and are rewritten from the store each run;
// staged data that is missing is warned about and skipped rather than
// failing the whole report.
package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/store"
)

// Reporter renders the store's staged results to CSV.
type Reporter struct {
	store        store.Store
	outDir       string
	baseYear     int
	horizonYear  int
	snapshotYear int
}

// New creates a Reporter writing under outDir.
func New(st store.Store, outDir string, baseYear, horizonYear, snapshotYear int) *Reporter {
	return &Reporter{
		store:        st,
		outDir:       outDir,
		baseYear:     baseYear,
		horizonYear:  horizonYear,
		snapshotYear: snapshotYear,
	}
}

// Result summarizes one report pass.
type Result struct {
	OutputDir string `json:"output_dir"`
	Files     int    `json:"files"`
	Rows      int    `json:"rows"`
}

// Run writes every output the staged data can support.
func (r *Reporter) Run(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create output dir %s", r.outDir)
	}

	res := &Result{OutputDir: r.outDir}
	if err := r.writeSeries(ctx, res); err != nil {
		return nil, err
	}
	if err := r.writeDiagnostics(ctx, res); err != nil {
		return nil, err
	}
	if err := r.writeAudit(ctx, res); err != nil {
		return nil, err
	}
	if err := r.writeSuppressions(ctx, res); err != nil {
		return nil, err
	}
	if err := r.writeOccupations(ctx, res); err != nil {
		return nil, err
	}
	if err := r.writeValidation(ctx, res); err != nil {
		return nil, err
	}
	if err := r.writeEducation(ctx, res); err != nil {
		return nil, err
	}

	zap.L().Info("report: outputs written",
		zap.String("output_dir", r.outDir),
		zap.Int("files", res.Files),
		zap.Int("rows", res.Rows),
	)
	return res, nil
}

func (r *Reporter) writeCSV(res *Result, name string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(r.outDir, name))
	if err != nil {
		return eris.Wrapf(err, "report: create %s", name)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "report: write %s header", name)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "report: write %s row", name)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "report: flush %s", name)
	}

	res.Files++
	res.Rows += len(rows)
	return nil
}

func floatStr(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// pctStr renders an optional percentage, keeping absent values as empty
// cells rather than zeros.
func pctStr(p *float64) string {
	if p == nil {
		return ""
	}
	return floatStr(*p)
}
