package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/occupation"
)

var occupationsCmd = &cobra.Command{
	Use:   "occupations",
	Short: "Distribute segment forecasts across occupations",
	Long: `Builds base-year occupation shares from the staffing patterns, applies
the national share-shift path where projections cover a pair, and distributes
every branch's segment totals across occupations. Run after 'extend'.`,
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

		result, err := dist.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "distribute occupations")
		}

		if result.SharelessSegments > 0 {
			zap.L().Warn("segments with no staffing shares were not distributed",
				zap.Int("segments", result.SharelessSegments),
			)
		}

		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(occupationsCmd)
}
