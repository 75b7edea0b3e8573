package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/report"
)

var reportOutputDir string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write forecast outputs as CSV files",
	Long: `Writes every staged series and forecast to the output directory: segment
and stage series per branch, comparison stacks, occupation forecasts with the
snapshot and sensitivity views, diagnostics, and the validation report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		outDir := reportOutputDir
		if outDir == "" {
			outDir = cfg.Data.OutputDir
		}

		fc := cfg.Forecast
		result, err := report.New(st, outDir, fc.BaseYear, fc.HorizonYear, fc.SnapshotYear).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "write reports")
		}

		zap.L().Info("reports written",
			zap.String("dir", result.OutputDir),
			zap.Int("files", result.Files),
			zap.Int("rows", result.Rows),
		)

		return printJSON(result)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOutputDir, "output-dir", "", "output directory (default from config)")
	rootCmd.AddCommand(reportCmd)
}
