package ingest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/config"
	"github.com/sells-group/workforce-cli/internal/fetcher"
	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

// Shares stages one automotive-attribution share table. The same dataset
// serves both published sources; only the file, the share column, and the
// stored source tag differ. Tables mix 4- to 6-digit codes and percent
// formatting, so codes are truncated to 4 digits and shares normalized to
// [0,1], averaging when a code appears more than once.
type Shares struct {
	source model.Attribution
	cfg    *config.Config
}

func (d *Shares) Name() string {
	if d.source == model.AttributionLightcast {
		return "lightcast_shares"
	}
	return "bea_shares"
}

func (d *Shares) Table() string    { return "attribution_shares" }
func (d *Shares) Group() Group     { return GroupShares }
func (d *Shares) Cadence() Cadence { return Manual }

// ShouldRun stages once; revised share tables are re-run by hand.
func (d *Shares) ShouldRun(_ time.Time, lastSync *time.Time) bool {
	return ManualSchedule(lastSync)
}

// parseShare reads one published share value, accepting percent suffixes
// and values quoted on the 0-100 scale, and clips the result to [0,1].
func parseShare(s string) (float64, bool) {
	v, ok := parseFloat64(s)
	if !ok {
		return 0, false
	}
	if v > 1 {
		v /= 100
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v, true
}

func (d *Shares) Sync(ctx context.Context, st store.Store, _ fetcher.Fetcher, dataDir string) (*store.SyncResult, error) {
	log := zap.L().With(zap.String("dataset", d.Name()))

	rel := d.cfg.Sources.BEASharesPath
	shareToken := "bea_share_to_set"
	if d.source == model.AttributionLightcast {
		rel = d.cfg.Sources.LightcastSharesPath
		shareToken = "share_to_set"
	}
	path := resolvePath(dataDir, rel)

	header, rows, err := fetcher.ReadCSVFile(path, fetcher.CSVOptions{TrimSpace: true})
	if err != nil {
		return nil, eris.Wrapf(err, "%s: read %s", d.Name(), path)
	}

	naicsIdx, shareIdx := -1, -1
	for i, h := range header {
		lower := strings.ToLower(h)
		if naicsIdx < 0 && strings.Contains(lower, "naics") {
			naicsIdx = i
		}
		if shareIdx < 0 && strings.Contains(lower, shareToken) {
			shareIdx = i
		}
	}
	if naicsIdx < 0 {
		return nil, eris.Errorf("%s: no NAICS column in %s", d.Name(), path)
	}
	if shareIdx < 0 {
		return nil, eris.Errorf("%s: no column containing %q in %s", d.Name(), shareToken, path)
	}

	type acc struct {
		sum float64
		n   int
	}
	byCode := make(map[string]*acc)
	skippedRows := 0
	for _, row := range rows {
		if naicsIdx >= len(row) {
			skippedRows++
			continue
		}
		code, ok := taxonomy.NAICS4(row[naicsIdx])
		if !ok {
			skippedRows++
			continue
		}
		a := byCode[code]
		if a == nil {
			a = &acc{}
			byCode[code] = a
		}
		if shareIdx < len(row) {
			if v, ok := parseShare(row[shareIdx]); ok {
				a.sum += v
				a.n++
			}
		}
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	unparsed := 0
	staged := make([]model.AttributionShare, 0, len(codes))
	for _, code := range codes {
		a := byCode[code]
		// A code whose every published share failed to parse carries no
		// information; staging 0 would erase the industry downstream.
		if a.n == 0 {
			unparsed++
			continue
		}
		staged = append(staged, model.AttributionShare{
			Source: d.source,
			NAICS:  code,
			Share:  a.sum / float64(a.n),
		})
	}

	if len(staged) == 0 {
		return nil, eris.Errorf("%s: no parseable shares in %s", d.Name(), path)
	}

	if err := st.ReplaceAttributionShares(ctx, d.source, staged); err != nil {
		return nil, eris.Wrapf(err, "%s: stage rows", d.Name())
	}

	log.Info("staged attribution shares",
		zap.Int("codes", len(staged)),
		zap.Int("skipped_rows", skippedRows),
		zap.Int("unparsed_codes", unparsed),
	)

	return &store.SyncResult{
		RowsSynced: int64(len(staged)),
		Metadata: map[string]any{
			"codes":          len(staged),
			"skipped_rows":   skippedRows,
			"unparsed_codes": unparsed,
		},
	}, nil
}
