package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/config"
	"github.com/sells-group/workforce-cli/internal/fetcher"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

// Moodys stages the Moody's supply-chain workbook. One sheet holds every
// series: attribute columns identify the mnemonic, description, and
// geography, and one column per year-end date carries the values. Both
// geographies and all three metrics come out of the same file.
type Moodys struct {
	cfg *config.Config
}

func (d *Moodys) Name() string     { return "moodys" }
func (d *Moodys) Table() string    { return "moodys_series" }
func (d *Moodys) Group() Group     { return GroupSeries }
func (d *Moodys) Cadence() Cadence { return Annual }

// ShouldRun refreshes once a year; the workbook is re-exported from the
// subscription each winter.
func (d *Moodys) ShouldRun(now time.Time, lastSync *time.Time) bool {
	return AnnualAfter(now, lastSync, time.January)
}

// inferMetric classifies a series by its description text.
func inferMetric(desc string) string {
	dl := strings.ToLower(desc)
	switch {
	case strings.Contains(dl, "employment"):
		return store.MetricEmployment
	case strings.Contains(dl, "wage"), strings.Contains(dl, "earnings"), strings.Contains(dl, "compensation"):
		return store.MetricWages
	case strings.Contains(dl, "output"), strings.Contains(dl, "gdp"), strings.Contains(dl, "gross"), strings.Contains(dl, "value added"):
		return store.MetricGDP
	default:
		return ""
	}
}

// geographyCode normalizes the workbook's geography labels.
func geographyCode(label string) string {
	switch strings.TrimSpace(label) {
	case "Michigan":
		return store.GeoMichigan
	case "United States":
		return store.GeoUS
	default:
		return ""
	}
}

func (d *Moodys) Sync(ctx context.Context, st store.Store, _ fetcher.Fetcher, dataDir string) (*store.SyncResult, error) {
	log := zap.L().With(zap.String("dataset", "moodys"))

	path := resolvePath(dataDir, d.cfg.Sources.MoodysPath)
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "moodys: read workbook")
	}
	if len(rows) < 2 {
		return nil, eris.Errorf("moodys: workbook %s has no data rows", path)
	}

	header := rows[0]
	exact := make(map[string]int, len(header))
	for i, col := range header {
		exact[strings.TrimSpace(col)] = i
	}

	var attrIdx [3]int
	for i, name := range []string{"Mnemonic:", "Description:", "Geography:"} {
		idx, ok := exact[name]
		if !ok {
			return nil, eris.Errorf("moodys: workbook %s missing required column %q", path, name)
		}
		attrIdx[i] = idx
	}
	mnemonicIdx, descIdx, geoIdx := attrIdx[0], attrIdx[1], attrIdx[2]

	yearCols := make(map[int]int) // column index -> year
	for i, col := range header {
		if year, ok := yearEndHeaderYear(col); ok {
			yearCols[i] = year
		}
	}
	if len(yearCols) == 0 {
		return nil, eris.Errorf("moodys: workbook %s has no year-end date columns", path)
	}

	overrides, err := taxonomy.LoadOverrides(d.cfg.Data.OverridesPath)
	if err != nil {
		return nil, eris.Wrap(err, "moodys: load overrides")
	}

	cell := func(row []string, idx int) string {
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	type seriesKey struct {
		geography string
		metric    string
	}
	type rowKey struct {
		naics string
		year  int
	}
	staged := make(map[seriesKey][]store.MoodysRow)
	seen := make(map[seriesKey]map[rowKey]bool)
	var skippedMetric, skippedNAICS, skippedGeo int

	for _, row := range rows[1:] {
		metric := inferMetric(cell(row, descIdx))
		if metric == "" {
			skippedMetric++
			continue
		}
		naics, ok := taxonomy.NAICSFromMnemonic(cell(row, mnemonicIdx))
		if !ok {
			skippedNAICS++
			continue
		}
		naics = overrides.Harmonize(naics)
		geography := geographyCode(cell(row, geoIdx))
		if geography == "" {
			skippedGeo++
			continue
		}

		sk := seriesKey{geography: geography, metric: metric}
		if seen[sk] == nil {
			seen[sk] = make(map[rowKey]bool)
		}
		for idx, year := range yearCols {
			rk := rowKey{naics: naics, year: year}
			// Duplicate mnemonics for the same code keep the first series.
			if seen[sk][rk] {
				continue
			}
			seen[sk][rk] = true
			staged[sk] = append(staged[sk], store.MoodysRow{
				Geography: geography,
				Metric:    metric,
				NAICS:     naics,
				Year:      year,
				Value:     parseFloat64Ptr(cell(row, idx)),
			})
		}
	}

	minYear, maxYear := 0, 0
	for _, year := range yearCols {
		if minYear == 0 || year < minYear {
			minYear = year
		}
		if year > maxYear {
			maxYear = year
		}
	}

	var total int64
	for _, points := range staged {
		total += int64(len(points))
	}
	if total == 0 {
		return nil, eris.Errorf("moodys: workbook %s yielded no usable series", path)
	}

	metadata := map[string]any{
		"years": fmt.Sprintf("%d-%d", minYear, maxYear),
	}
	for _, geography := range []string{store.GeoMichigan, store.GeoUS} {
		for _, metric := range []string{store.MetricEmployment, store.MetricWages, store.MetricGDP} {
			sk := seriesKey{geography: geography, metric: metric}
			points := staged[sk]
			if err := st.ReplaceMoodysSeries(ctx, geography, metric, points); err != nil {
				return nil, eris.Wrapf(err, "moodys: stage %s %s", geography, metric)
			}
			metadata[fmt.Sprintf("%s_%s", strings.ToLower(geography), metric)] = len(points)
		}
	}
	if skippedMetric > 0 || skippedNAICS > 0 || skippedGeo > 0 {
		metadata["skipped"] = map[string]int{
			"metric":    skippedMetric,
			"naics":     skippedNAICS,
			"geography": skippedGeo,
		}
	}

	log.Info("staged forecast series",
		zap.Int64("rows", total),
		zap.Int("skipped_metric", skippedMetric),
		zap.Int("skipped_naics", skippedNAICS),
	)

	return &store.SyncResult{RowsSynced: total, Metadata: metadata}, nil
}
