package ingest

import (
	"context"
	"regexp"
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

// mcdaYears are the estimate vintages carried by the staffing workbook.
var mcdaYears = map[int]bool{2021: true, 2024: true}

var sheetSegmentRe = regexp.MustCompile(`^\s*(\d+)`)

// MCDA stages the state staffing-pattern workbook: one sheet per segment,
// named with the segment's number, holding occupation employment estimates
// for the two survey years.
type MCDA struct {
	cfg *config.Config
}

func (d *MCDA) Name() string     { return "mcda" }
func (d *MCDA) Table() string    { return "staffing" }
func (d *MCDA) Group() Group     { return GroupStaffing }
func (d *MCDA) Cadence() Cadence { return Manual }

func (d *MCDA) ShouldRun(_ time.Time, lastSync *time.Time) bool {
	return ManualSchedule(lastSync)
}

func (d *MCDA) Sync(ctx context.Context, st store.Store, _ fetcher.Fetcher, dataDir string) (*store.SyncResult, error) {
	log := zap.L().With(zap.String("dataset", "mcda"))

	path := resolvePath(dataDir, d.cfg.Sources.MCDAPath)
	wb, err := fetcher.OpenWorkbook(path)
	if err != nil {
		return nil, eris.Wrap(err, "mcda: open workbook")
	}

	type key struct {
		segmentID int
		occ       string
		year      int
	}
	employment := make(map[key]float64)
	titles := make(map[key]string)
	var order []key
	segments := make(map[int]bool)
	var skippedSheets, skippedRows int

	for _, sheet := range wb.SheetNames() {
		m := sheetSegmentRe.FindStringSubmatch(sheet)
		if m == nil {
			log.Warn("sheet name carries no segment number, skipping", zap.String("sheet", sheet))
			skippedSheets++
			continue
		}
		segmentID := parseIntOr(m[1], 0)

		rows, err := wb.Sheet(fetcher.XLSXOptions{SheetName: sheet})
		if err != nil {
			return nil, eris.Wrapf(err, "mcda: read sheet %q", sheet)
		}
		if len(rows) < 2 {
			skippedSheets++
			continue
		}

		colIdx := mapColumnsNormalized(rows[0])
		if _, ok := colIdx["occcd"]; !ok {
			skippedSheets++
			continue
		}
		if _, ok := colIdx["estyear"]; !ok {
			skippedSheets++
			continue
		}
		if _, ok := colIdx["roundempl"]; !ok {
			skippedSheets++
			continue
		}

		for _, row := range rows[1:] {
			occ := strings.TrimSpace(getColN(row, colIdx, "occcd"))
			if occ == "" {
				continue
			}
			year := parseIntOr(getColN(row, colIdx, "estyear"), 0)
			if !mcdaYears[year] {
				continue
			}
			empl, ok := parseFloat64(getColN(row, colIdx, "roundempl"))
			if !ok {
				skippedRows++
				continue
			}

			k := key{segmentID: segmentID, occ: occ, year: year}
			if _, seen := employment[k]; !seen {
				order = append(order, k)
			}
			employment[k] += empl
			if titles[k] == "" {
				if title := strings.TrimSpace(getColN(row, colIdx, "soctitle")); title != "" && title != "nan" {
					titles[k] = title
				}
			}
			segments[segmentID] = true
		}
	}

	if len(order) == 0 {
		return nil, eris.Errorf("mcda: workbook %s yielded no staffing rows", path)
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.segmentID != b.segmentID {
			return a.segmentID < b.segmentID
		}
		if a.occ != b.occ {
			return a.occ < b.occ
		}
		return a.year < b.year
	})

	staged := make([]model.StaffingRow, 0, len(order))
	for _, k := range order {
		staged = append(staged, model.StaffingRow{
			SegmentID:  k.segmentID,
			Segment:    taxonomy.SegmentLabel(k.segmentID),
			OccCode:    k.occ,
			OccTitle:   titles[k],
			Year:       k.year,
			Employment: employment[k],
			OccLevel:   model.ClassifyOccLevel(k.occ),
			IsTotal:    model.IsAllOccupations(k.occ),
		})
	}

	if err := st.ReplaceStaffing(ctx, store.StaffingMCDA, staged); err != nil {
		return nil, eris.Wrap(err, "mcda: stage rows")
	}

	log.Info("staged staffing patterns",
		zap.Int("segments", len(segments)),
		zap.Int("rows", len(staged)),
		zap.Int("skipped_rows", skippedRows),
	)

	return &store.SyncResult{
		RowsSynced: int64(len(staged)),
		Metadata: map[string]any{
			"segments":       len(segments),
			"skipped_sheets": skippedSheets,
			"skipped_rows":   skippedRows,
		},
	}, nil
}
