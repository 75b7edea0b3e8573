package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/aggregate"
)

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Roll staged industry employment into supply-chain segments",
	Long: `Sums the staged per-NAICS employment series into the ten supply-chain
segments and the three stage rollups, recording suppressed source cells in
the audit table. Requires the census workbook to be ingested first.`,
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

		tax, err := initTaxonomy()
		if err != nil {
			return err
		}

		result, err := aggregate.New(st, tax).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "aggregate segments")
		}

		if result.FullySuppressed > 0 {
			zap.L().Warn("segment-years with every source cell suppressed carried as zero",
				zap.Int("segment_years", result.FullySuppressed),
			)
		}

		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(segmentsCmd)
}
