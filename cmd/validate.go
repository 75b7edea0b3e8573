package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/occupation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check occupation totals against segment forecasts",
	Long: `Compares the summed occupation employment for every branch, segment,
and year against the segment forecast it was distributed from. Deviations
beyond the configured tolerance are reported, not fatal: share shift moves
occupation totals off the segment line by design.`,
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

		fc := cfg.Forecast
		dist := occupation.New(st, fc.BaseYear, fc.HorizonYear, fc.TolerancePct)

		result, err := dist.Validate(ctx)
		if err != nil {
			return eris.Wrap(err, "validate occupations")
		}

		if result.Failures > 0 {
			zap.L().Warn("validation checks exceeded tolerance",
				zap.Int("failures", result.Failures),
				zap.Float64("max_divergence_pct", result.MaxDivergence),
				zap.Float64("tolerance_pct", fc.TolerancePct),
			)
		}

		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
