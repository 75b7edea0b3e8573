package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/config"
	"github.com/sells-group/workforce-cli/internal/fetcher"
	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

// QCEW stages the state QCEW workbook: one row per NAICS series, one
// annual-average column per year. Suppressed cells are staged as nulls so
// the aggregation step can audit them instead of losing them.
type QCEW struct {
	cfg *config.Config
}

func (d *QCEW) Name() string     { return "qcew" }
func (d *QCEW) Table() string    { return "industry_employment" }
func (d *QCEW) Group() Group     { return GroupSeries }
func (d *QCEW) Cadence() Cadence { return Annual }

// ShouldRun follows the annual-averages release, published mid-year.
func (d *QCEW) ShouldRun(now time.Time, lastSync *time.Time) bool {
	return AnnualAfter(now, lastSync, time.June)
}

func (d *QCEW) Sync(ctx context.Context, st store.Store, _ fetcher.Fetcher, dataDir string) (*store.SyncResult, error) {
	log := zap.L().With(zap.String("dataset", "qcew"))

	path := resolvePath(dataDir, d.cfg.Sources.QCEWPath)
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SkipRows: 3})
	if err != nil {
		return nil, eris.Wrap(err, "qcew: read workbook")
	}
	if len(rows) < 2 {
		return nil, eris.Errorf("qcew: workbook %s has no data rows", path)
	}

	header := rows[0]
	colIdx := mapColumnsNormalized(header)
	seriesIdx, ok := colIdx["series_id"]
	if !ok {
		return nil, eris.Errorf("qcew: workbook %s missing 'Series ID' column", path)
	}

	yearCols := make(map[int]int) // column index -> year
	for i, col := range header {
		if year, ok := annualHeaderYear(col); ok {
			yearCols[i] = year
		}
	}
	if len(yearCols) == 0 {
		return nil, eris.Errorf("qcew: workbook %s has no 'Annual <year>' columns", path)
	}

	type key struct {
		naics string
		year  int
	}
	values := make(map[key]*float64)
	var order []key
	var suppressed int

	for _, row := range rows[1:] {
		if seriesIdx >= len(row) {
			continue
		}
		naics, ok := taxonomy.NAICSFromSeriesID(row[seriesIdx])
		if !ok {
			continue
		}
		for idx, year := range yearCols {
			var cell string
			if idx < len(row) {
				cell = row[idx]
			}
			v := parseFloat64Ptr(cell)
			if v == nil {
				suppressed++
			}
			k := key{naics: naics, year: year}
			prev, seen := values[k]
			if !seen {
				values[k] = v
				order = append(order, k)
				continue
			}
			// Ownership splits publish the same code twice; sum the
			// published values, keeping null only when every copy is null.
			if v != nil {
				if prev == nil {
					values[k] = v
				} else {
					sum := *prev + *v
					values[k] = &sum
				}
			}
		}
	}

	if len(order) == 0 {
		return nil, eris.Errorf("qcew: workbook %s yielded no NAICS series", path)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].naics != order[j].naics {
			return order[i].naics < order[j].naics
		}
		return order[i].year < order[j].year
	})

	staged := make([]model.IndustryEmployment, 0, len(order))
	naicsSet := make(map[string]struct{})
	minYear, maxYear := 0, 0
	for _, k := range order {
		staged = append(staged, model.IndustryEmployment{
			NAICS:      k.naics,
			Year:       k.year,
			Employment: values[k],
		})
		naicsSet[k.naics] = struct{}{}
		if minYear == 0 || k.year < minYear {
			minYear = k.year
		}
		if k.year > maxYear {
			maxYear = k.year
		}
	}

	if err := st.ReplaceIndustryEmployment(ctx, staged); err != nil {
		return nil, eris.Wrap(err, "qcew: stage rows")
	}

	log.Info("staged census employment",
		zap.Int("naics_codes", len(naicsSet)),
		zap.Int("rows", len(staged)),
		zap.Int("suppressed", suppressed),
	)

	return &store.SyncResult{
		RowsSynced: int64(len(staged)),
		Metadata: map[string]any{
			"naics_codes": len(naicsSet),
			"years":       fmt.Sprintf("%d-%d", minYear, maxYear),
			"suppressed":  suppressed,
		},
	}, nil
}
