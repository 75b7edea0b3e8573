package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/pipeline"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Run the full forecast pipeline as a tracked run",
	Long: `Runs every stage in order against the staged sources: segment rollup,
attribution, growth extension, occupation distribution, validation, and
reporting. Progress is recorded on a run row; a failed stage marks the run
failed with its error. Requires 'ingest' to have staged the inputs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		tax, err := initTaxonomy()
		if err != nil {
			return err
		}

		result, err := pipeline.New(cfg, st, tax).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "forecast run")
		}

		zap.L().Info("forecast complete",
			zap.String("run_id", result.RunID),
			zap.Int("forecast_rows", result.Occupations.Rows),
			zap.Float64("max_divergence_pct", result.Validation.MaxDivergence),
		)

		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(forecastCmd)
}
