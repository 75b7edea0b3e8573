package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/fetcher"
	"github.com/sells-group/workforce-cli/internal/store"
)

// Engine orchestrates dataset sync runs.
type Engine struct {
	st      store.Store
	fetcher fetcher.Fetcher
	reg     *Registry
	dataDir string
}

// RunOpts configures which datasets to sync and how.
type RunOpts struct {
	Group    *Group   // restrict to a specific group
	Datasets []string // restrict to specific dataset names
	Force    bool     // ignore ShouldRun() scheduling
}

// NewEngine creates a new sync engine. dataDir is the directory the source
// files live in.
func NewEngine(st store.Store, f fetcher.Fetcher, reg *Registry, dataDir string) *Engine {
	return &Engine{
		st:      st,
		fetcher: f,
		reg:     reg,
		dataDir: dataDir,
	}
}

// Run iterates over the selected datasets, checks if each needs syncing,
// and runs the sync. Results are recorded in the sync log. A dataset that
// fails is logged and counted; it does not stop the run.
func (e *Engine) Run(ctx context.Context, opts RunOpts) error {
	log := zap.L().With(zap.String("component", "ingest.engine"))
	now := time.Now().UTC()

	datasets, err := e.reg.Select(opts.Group, opts.Datasets)
	if err != nil {
		return err
	}

	if len(datasets) == 0 {
		log.Info("no datasets selected")
		return nil
	}

	log.Info("selected datasets", zap.Int("count", len(datasets)))

	var synced, skipped, failed int

	for _, ds := range datasets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dsLog := log.With(zap.String("dataset", ds.Name()), zap.String("group", string(ds.Group())))

		if !opts.Force {
			lastSync, err := e.st.LastSuccess(ctx, ds.Name())
			if err != nil {
				return eris.Wrapf(err, "engine: check last sync for %s", ds.Name())
			}

			if !ds.ShouldRun(now, lastSync) {
				dsLog.Debug("skipping (not due)")
				skipped++
				continue
			}
		}

		dsLog.Info("starting sync")
		syncID, err := e.st.StartSync(ctx, ds.Name())
		if err != nil {
			return eris.Wrapf(err, "engine: start sync log for %s", ds.Name())
		}

		start := time.Now()
		result, err := ds.Sync(ctx, e.st, e.fetcher, e.dataDir)
		elapsed := time.Since(start)

		if err != nil {
			dsLog.Error("sync failed", zap.Error(err), zap.Duration("elapsed", elapsed))
			if logErr := e.st.FailSync(ctx, syncID, err.Error()); logErr != nil {
				dsLog.Error("failed to record sync failure", zap.Error(logErr))
			}
			failed++
			continue
		}

		if err := e.st.CompleteSync(ctx, syncID, result); err != nil {
			dsLog.Error("failed to record sync completion", zap.Error(err))
		}

		dsLog.Info("sync complete",
			zap.Int64("rows", result.RowsSynced),
			zap.Duration("elapsed", elapsed),
		)
		synced++
	}

	log.Info("engine run complete",
		zap.Int("synced", synced),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}
