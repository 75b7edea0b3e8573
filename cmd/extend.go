package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/growth"
	"github.com/sells-group/workforce-cli/internal/model"
)

var (
	extendAttribution string
	extendGrowth      string
)

// extendOutput is the combined JSON the extend command prints: the growth
// rates it derived and the branch extensions built from them.
type extendOutput struct {
	Rates      []*growth.RatesResult  `json:"rates"`
	Extensions []*growth.ExtendResult `json:"extensions"`
}

var extendCmd = &cobra.Command{
	Use:   "extend",
	Short: "Extend attributed series to the forecast horizon",
	Long: `Derives year-over-year growth rates from each forecast source, then
carries every attributed segment series forward from the base year to the
horizon under each selected methodology branch. Run after 'attribution'.`,
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

		attributions := model.AllAttributions()
		if extendAttribution != "" {
			src, err := model.ParseAttribution(extendAttribution)
			if err != nil {
				return err
			}
			attributions = []model.Attribution{src}
		}

		growthSources := model.AllGrowthSources()
		if extendGrowth != "" {
			src, err := model.ParseGrowthSource(extendGrowth)
			if err != nil {
				return err
			}
			growthSources = []model.GrowthSource{src}
		}

		fc := cfg.Forecast
		ext := growth.New(st, tax, fc.BaseYear, fc.HorizonYear)

		var out extendOutput
		for _, src := range growthSources {
			rates, err := ext.BuildRates(ctx, src)
			if err != nil {
				return eris.Wrapf(err, "build %s rates", src)
			}
			if rates.MissingRates > 0 {
				zap.L().Warn("segment-years without a usable growth rate",
					zap.String("source", string(src)),
					zap.Int("segment_years", rates.MissingRates),
				)
			}
			out.Rates = append(out.Rates, rates)
		}

		for _, att := range attributions {
			for _, src := range growthSources {
				result, err := ext.Extend(ctx, att, src)
				if err != nil {
					return eris.Wrapf(err, "extend %s_%s", att, src)
				}
				out.Extensions = append(out.Extensions, result)
			}
		}

		return printJSON(out)
	},
}

func init() {
	extendCmd.Flags().StringVar(&extendAttribution, "attribution", "", "attribution source (bea or lightcast; default both)")
	extendCmd.Flags().StringVar(&extendGrowth, "growth", "", "growth source (moody or bls; default both)")
	rootCmd.AddCommand(extendCmd)
}
