package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/ingest"
	"github.com/sells-group/workforce-cli/internal/store"
)

var (
	ingestGroup    string
	ingestDatasets []string
	ingestForce    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Stage source datasets into the local store",
	Long: `Syncs the staged copies of the census workbook, the Moody's forecast,
staffing patterns, national projections attributes, and the attribution share
tables. Datasets on an annual cadence are skipped until their release month
passes; use --force to re-stage regardless.`,
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

		opts := ingest.RunOpts{Datasets: ingestDatasets, Force: ingestForce}
		if ingestGroup != "" {
			g, err := ingest.ParseGroup(ingestGroup)
			if err != nil {
				return err
			}
			opts.Group = &g
		}

		reg := ingest.NewRegistry(cfg)
		eng := ingest.NewEngine(st, newFetcher(), reg, cfg.Data.RawDir)
		return eng.Run(ctx, opts)
	},
}

// -- ingest status --

var ingestStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the dataset sync log",
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

		entries, err := st.ListSyncs(ctx)
		if err != nil {
			return eris.Wrap(err, "ingest status")
		}

		if len(entries) == 0 {
			zap.L().Info("no sync entries found, run 'workforce ingest' to stage datasets")
			return nil
		}

		formatSyncEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestGroup, "group", "", "restrict to one input group (series, staffing, shares)")
	ingestCmd.Flags().StringSliceVar(&ingestDatasets, "dataset", nil, "restrict to named datasets (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "sync even when the schedule says the dataset is current")
	ingestCmd.AddCommand(ingestStatusCmd)
	rootCmd.AddCommand(ingestCmd)
}

// formatSyncEntries writes a tabular representation of sync entries to w.
func formatSyncEntries(out io.Writer, entries []store.SyncEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATASET\tSTATUS\tSTARTED\tDURATION\tROWS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t-------\t--------\t----\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}

		errMsg := ""
		if e.Error != "" {
			errMsg = truncate(e.Error, 60)
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.Dataset,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.RowsSynced,
			errMsg,
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
