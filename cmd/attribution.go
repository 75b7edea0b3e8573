package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/attribution"
	"github.com/sells-group/workforce-cli/internal/model"
)

var attributionSource string

var attributionCmd = &cobra.Command{
	Use:   "attribution",
	Short: "Scale segment series to their automotive portion",
	Long: `Applies the staged auto-attribution share tables to the raw segment
rollup, producing one attributed series per source. Segments with no share
coverage are carried at their raw value and flagged. Run after 'segments'.`,
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

		sources := model.AllAttributions()
		if attributionSource != "" {
			src, err := model.ParseAttribution(attributionSource)
			if err != nil {
				return err
			}
			sources = []model.Attribution{src}
		}

		splitter := attribution.New(st, tax, cfg.Forecast.BaseYear)

		results := make([]*attribution.Result, 0, len(sources))
		for _, src := range sources {
			result, err := splitter.Run(ctx, src)
			if err != nil {
				return eris.Wrapf(err, "attribution %s", src)
			}
			if result.UncoveredSegments > 0 {
				zap.L().Warn("segments carried raw without share coverage",
					zap.String("source", string(src)),
					zap.Int("segments", result.UncoveredSegments),
				)
			}
			results = append(results, result)
		}

		if len(results) == 1 {
			return printJSON(results[0])
		}
		return printJSON(results)
	},
}

func init() {
	attributionCmd.Flags().StringVar(&attributionSource, "source", "", "attribution source (bea or lightcast; default both)")
	rootCmd.AddCommand(attributionCmd)
}
