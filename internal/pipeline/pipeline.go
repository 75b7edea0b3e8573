// Package pipeline chains the forecast stages into a single tracked run:
// census aggregation, auto attribution, growth extension, occupation
// distribution, validation, and report generation. Every invocation is
// recorded as a run row in the store so the CLI and the results API can
// show progress and outcomes.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/aggregate"
	"github.com/sells-group/workforce-cli/internal/attribution"
	"github.com/sells-group/workforce-cli/internal/config"
	"github.com/sells-group/workforce-cli/internal/growth"
	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/occupation"
	"github.com/sells-group/workforce-cli/internal/report"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

// Pipeline drives a full forecast run over pre-staged inputs.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
	tax   *taxonomy.Taxonomy
}

// New returns a pipeline over the given store and segment taxonomy.
func New(cfg *config.Config, st store.Store, tax *taxonomy.Taxonomy) *Pipeline {
	return &Pipeline{cfg: cfg, store: st, tax: tax}
}

// Result collects the stage summaries of one run.
type Result struct {
	RunID       string                     `json:"run_id"`
	Aggregate   *aggregate.Result          `json:"aggregate,omitempty"`
	Attribution []*attribution.Result      `json:"attribution,omitempty"`
	Rates       []*growth.RatesResult      `json:"growth_rates,omitempty"`
	Extensions  []*growth.ExtendResult     `json:"extensions,omitempty"`
	Occupations *occupation.Result         `json:"occupations,omitempty"`
	Validation  *occupation.ValidateResult `json:"validation,omitempty"`
	Report      *report.Result             `json:"report,omitempty"`
	Stages      []StageTiming              `json:"stages,omitempty"`
	Warnings    []string                   `json:"warnings,omitempty"`
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
}

// Run executes aggregation through reporting and records the outcome on
// the run row. A stage error marks the run failed and aborts; warnings
// (suppressions, uncovered segments, validation misses) accumulate on
// the run result instead.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	fc := p.cfg.Forecast
	run, err := p.store.CreateRun(ctx, fc.BaseYear, fc.HorizonYear)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("pipeline: forecast run started",
		zap.Int("base_year", fc.BaseYear),
		zap.Int("horizon_year", fc.HorizonYear),
	)

	res := &Result{RunID: run.ID}
	if err := p.execute(ctx, log, run.ID, res); err != nil {
		result := &model.RunResult{Warnings: res.warnings(), Error: err.Error()}
		if saveErr := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusFailed, result); saveErr != nil {
			log.Warn("pipeline: record run failure", zap.Error(saveErr))
		}
		log.Error("pipeline: forecast run failed", zap.Error(err))
		return res, err
	}

	result := &model.RunResult{
		Segments:     res.Aggregate.Segments,
		Occupations:  res.Occupations.Occupations,
		ForecastRows: res.Occupations.Rows,
		Warnings:     res.warnings(),
	}
	if res.Validation != nil {
		result.MaxDivergence = res.Validation.MaxDivergence
	}
	if res.Report != nil {
		result.OutputDir = res.Report.OutputDir
	}
	if err := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result); err != nil {
		log.Warn("pipeline: save run result", zap.Error(err))
	}
	res.Warnings = result.Warnings

	log.Info("pipeline: forecast run complete",
		zap.Int("segments", result.Segments),
		zap.Int("occupations", result.Occupations),
		zap.Int("forecast_rows", result.ForecastRows),
		zap.Float64("max_divergence_pct", result.MaxDivergence),
		zap.Int("warnings", len(result.Warnings)),
	)
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, log *zap.Logger, runID string, res *Result) error {
	fc := p.cfg.Forecast

	setStatus := func(status model.RunStatus) {
		if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
			log.Warn("pipeline: update run status",
				zap.String("status", string(status)), zap.Error(err))
		}
	}
	runStage := func(name string, status model.RunStatus, fn func() error) error {
		setStatus(status)
		start := time.Now()
		err := fn()
		res.Stages = append(res.Stages, StageTiming{
			Stage:      name,
			DurationMS: time.Since(start).Milliseconds(),
		})
		if err != nil {
			return err
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", name), zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	// Stage 1: census rollup to segments and supply-chain stages.
	if err := runStage("aggregate", model.RunStatusAggregating, func() error {
		r, err := aggregate.New(p.store, p.tax).Run(ctx)
		if err != nil {
			return err
		}
		res.Aggregate = r
		return nil
	}); err != nil {
		return err
	}

	// Stage 2: auto-attribution under both share tables.
	if err := runStage("attribution", model.RunStatusAttributing, func() error {
		splitter := attribution.New(p.store, p.tax, fc.BaseYear)
		for _, src := range model.AllAttributions() {
			r, err := splitter.Run(ctx, src)
			if err != nil {
				return err
			}
			res.Attribution = append(res.Attribution, r)
		}
		return nil
	}); err != nil {
		return err
	}

	// Stage 3: growth rates from both sources, then extension of every
	// methodology branch to the horizon. Branches write to the same
	// store, so they run in sequence here; the distributor fans its
	// branch computations out instead.
	if err := runStage("extend", model.RunStatusExtending, func() error {
		ext := growth.New(p.store, p.tax, fc.BaseYear, fc.HorizonYear)
		for _, src := range model.AllGrowthSources() {
			r, err := ext.BuildRates(ctx, src)
			if err != nil {
				return err
			}
			res.Rates = append(res.Rates, r)
		}
		for _, m := range model.AllMethodologies() {
			r, err := ext.Extend(ctx, m.Attribution, m.Growth)
			if err != nil {
				return err
			}
			res.Extensions = append(res.Extensions, r)
		}
		return nil
	}); err != nil {
		return err
	}

	dist := occupation.New(p.store, fc.BaseYear, fc.HorizonYear, fc.TolerancePct)

	// Stage 4: occupation distribution across the four branches.
	if err := runStage("distribute", model.RunStatusDistributing, func() error {
		r, err := dist.Run(ctx)
		if err != nil {
			return err
		}
		res.Occupations = r
		return nil
	}); err != nil {
		return err
	}

	// Stage 5: reconcile occupation sums against segment totals.
	if err := runStage("validate", model.RunStatusValidating, func() error {
		r, err := dist.Validate(ctx)
		if err != nil {
			return err
		}
		res.Validation = r
		return nil
	}); err != nil {
		return err
	}

	// Stage 6: write the output files.
	return runStage("report", model.RunStatusReporting, func() error {
		r, err := report.New(p.store, p.cfg.Data.OutputDir,
			fc.BaseYear, fc.HorizonYear, fc.SnapshotYear).Run(ctx)
		if err != nil {
			return err
		}
		res.Report = r
		return nil
	})
}

// warnings flattens notable stage counts into run-level warnings.
func (r *Result) warnings() []string {
	var out []string
	if r.Aggregate != nil && r.Aggregate.FullySuppressed > 0 {
		out = append(out, fmt.Sprintf(
			"%d segment-years fully suppressed in the census rollup", r.Aggregate.FullySuppressed))
	}
	for _, a := range r.Attribution {
		if a.UncoveredSegments > 0 {
			out = append(out, fmt.Sprintf(
				"%s attribution leaves %d segments without share coverage", a.Source, a.UncoveredSegments))
		}
	}
	for _, e := range r.Extensions {
		if e.Unanchored > 0 {
			out = append(out, fmt.Sprintf(
				"%s/%s extension found %d series without a base-year anchor", e.Attribution, e.Growth, e.Unanchored))
		}
	}
	if r.Occupations != nil && r.Occupations.SharelessSegments > 0 {
		out = append(out, fmt.Sprintf(
			"%d segments have no staffing shares and were not distributed", r.Occupations.SharelessSegments))
	}
	if r.Validation != nil && r.Validation.Failures > 0 {
		out = append(out, fmt.Sprintf(
			"%d validation checks exceeded tolerance (max divergence %.2f%%)",
			r.Validation.Failures, r.Validation.MaxDivergence))
	}
	return out
}
