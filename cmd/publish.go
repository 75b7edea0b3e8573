package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/warehouse"
	"github.com/sells-group/workforce-cli/pkg/notion"
)

var publishNotify bool

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish forecast results to the Postgres warehouse",
	Long: `Bulk-upserts the staged segment series and occupation forecasts into
the warehouse schema. Re-publishing the same run is idempotent. With
--notify, a summary of the latest run is posted to the Notion tracker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("publish"); err != nil {
			return err
		}

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		pool, err := pgxpool.New(ctx, cfg.Warehouse.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "connect warehouse")
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return eris.Wrap(err, "ping warehouse")
		}

		pub := warehouse.New(st, pool, cfg.Warehouse.Schema)
		if err := pub.Migrate(ctx); err != nil {
			return err
		}

		result, err := pub.Publish(ctx)
		if err != nil {
			return err
		}

		if publishNotify {
			if err := notifyLatestRun(ctx, st); err != nil {
				return err
			}
		}

		return printJSON(result)
	},
}

func init() {
	publishCmd.Flags().BoolVar(&publishNotify, "notify", false, "post a summary of the latest run to the Notion tracker")
	rootCmd.AddCommand(publishCmd)
}

// notifyLatestRun posts a tracker page for the most recent forecast run.
func notifyLatestRun(ctx context.Context, st store.Store) error {
	if err := cfg.Validate("notify"); err != nil {
		return err
	}

	runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 1})
	if err != nil {
		return eris.Wrap(err, "load latest run")
	}
	if len(runs) == 0 {
		return eris.New("no runs recorded; run the forecast first")
	}

	client := notion.NewClient(cfg.Notion.Token)
	page, err := notion.PublishRunSummary(ctx, client, cfg.Notion.RunsDB, runSummaryFromRun(runs[0]))
	if err != nil {
		return err
	}

	zap.L().Info("run summary posted",
		zap.String("run_id", runs[0].ID),
		zap.String("page_id", string(page.ID)),
	)
	return nil
}

// runSummaryFromRun maps a stored run onto the tracker page fields.
func runSummaryFromRun(run model.Run) notion.RunSummary {
	s := notion.RunSummary{
		RunID:         run.ID,
		Status:        string(run.Status),
		BaseYear:      run.BaseYear,
		HorizonYear:   run.HorizonYear,
		Methodologies: len(model.AllMethodologies()),
	}
	if run.Result != nil {
		s.Segments = run.Result.Segments
		s.Occupations = run.Result.Occupations
		s.ForecastRows = run.Result.ForecastRows
		s.MaxDivergencePct = run.Result.MaxDivergence
		s.Warnings = run.Result.Warnings
		s.OutputDir = run.Result.OutputDir
		s.Error = run.Result.Error
	}
	return s
}
