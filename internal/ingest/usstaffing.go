package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
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

// USStaffing rolls the per-NAICS national staffing tables up to segments and
// stages them long-form, one row per occupation and projection year. The
// national tables are scraped per industry; several member codes of a
// segment can resolve to the same published table, so tables are
// deduplicated by source within each segment before summing.
type USStaffing struct {
	cfg *config.Config
}

func (d *USStaffing) Name() string     { return "us_staffing" }
func (d *USStaffing) Table() string    { return "staffing" }
func (d *USStaffing) Group() Group     { return GroupStaffing }
func (d *USStaffing) Cadence() Cadence { return Annual }

// ShouldRun follows the national projections release each fall.
func (d *USStaffing) ShouldRun(now time.Time, lastSync *time.Time) bool {
	return AnnualAfter(now, lastSync, time.September)
}

// parseSourceCode pulls the query token that identifies a published table
// from its source URL.
func parseSourceCode(url string) string {
	token := url
	if idx := strings.LastIndex(url, "queryParams="); idx >= 0 {
		token = url[idx+len("queryParams="):]
	}
	if idx := strings.Index(token, "&"); idx >= 0 {
		token = token[:idx]
	}
	return strings.TrimSpace(token)
}

func (d *USStaffing) Sync(ctx context.Context, st store.Store, _ fetcher.Fetcher, dataDir string) (*store.SyncResult, error) {
	log := zap.L().With(zap.String("dataset", "us_staffing"))

	tax, err := taxonomy.LoadAssignments(d.cfg.Data.LookupPath)
	if err != nil {
		return nil, eris.Wrap(err, "us_staffing: load segment lookup")
	}

	dir := resolvePath(dataDir, d.cfg.Sources.StaffingDir)
	baseCol := fmt.Sprintf("%d Employment", d.cfg.Forecast.BaseYear)
	horizonCol := fmt.Sprintf("Projected %d Employment", d.cfg.Forecast.HorizonYear)

	type key struct {
		segmentID int
		occ       string
		year      int
	}
	type acc struct {
		sum float64
		n   int
	}
	totals := make(map[key]*acc)
	titles := make(map[key]string)
	var order []key

	add := func(k key, v *float64, title string) {
		a, seen := totals[k]
		if !seen {
			a = &acc{}
			totals[k] = a
			order = append(order, k)
		}
		if v != nil {
			a.sum += *v
			a.n++
		}
		if titles[k] == "" && title != "" {
			titles[k] = title
		}
	}

	var missingFiles []string
	usedSegments := make(map[string]map[int]bool) // source code -> segments it fed
	var duplicateSources, segmentsLoaded int

	for _, seg := range tax.Segments() {
		seenSources := make(map[string]bool)
		loaded := false

		for _, naics := range tax.CodesFor(seg.ID) {
			path := filepath.Join(dir, fmt.Sprintf("us_staffing_%s.csv", naics))
			if _, err := os.Stat(path); err != nil {
				missingFiles = append(missingFiles, naics)
				continue
			}

			header, rows, err := fetcher.ReadCSVFile(path, fetcher.CSVOptions{TrimSpace: true})
			if err != nil {
				return nil, eris.Wrapf(err, "us_staffing: read %s", path)
			}
			colIdx := mapColumnsNormalized(header)
			if _, ok := colIdx[normalizeCol("Occupation Code")]; !ok {
				return nil, eris.Errorf("us_staffing: %s missing 'Occupation Code' column", path)
			}
			if _, ok := colIdx[normalizeCol(baseCol)]; !ok {
				return nil, eris.Errorf("us_staffing: %s missing %q column", path, baseCol)
			}
			if len(rows) == 0 {
				continue
			}

			sourceCode := parseSourceCode(getColN(rows[0], colIdx, "source_url"))
			if seenSources[sourceCode] {
				duplicateSources++
				continue
			}
			seenSources[sourceCode] = true
			if usedSegments[sourceCode] == nil {
				usedSegments[sourceCode] = make(map[int]bool)
			}
			usedSegments[sourceCode][seg.ID] = true
			loaded = true

			for _, row := range rows {
				occ := strings.TrimSpace(getColN(row, colIdx, "Occupation Code"))
				if occ == "" {
					continue
				}
				title := strings.TrimSpace(getColN(row, colIdx, "Occupation Title"))
				add(key{segmentID: seg.ID, occ: occ, year: d.cfg.Forecast.BaseYear},
					parseFloat64Ptr(getColN(row, colIdx, baseCol)), title)
				add(key{segmentID: seg.ID, occ: occ, year: d.cfg.Forecast.HorizonYear},
					parseFloat64Ptr(getColN(row, colIdx, horizonCol)), title)
			}
		}

		if loaded {
			segmentsLoaded++
		}
	}

	if segmentsLoaded == 0 {
		return nil, eris.Errorf("us_staffing: no staffing tables loaded from %s", dir)
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
		a := totals[k]
		// An occupation with no published value for this year stages
		// nothing; downstream treats the gap as missing, not zero.
		if a.n == 0 {
			continue
		}
		staged = append(staged, model.StaffingRow{
			SegmentID:  k.segmentID,
			Segment:    taxonomy.SegmentLabel(k.segmentID),
			OccCode:    k.occ,
			OccTitle:   titles[k],
			Year:       k.year,
			Employment: a.sum,
			OccLevel:   model.ClassifyOccLevel(k.occ),
			IsTotal:    model.IsAllOccupations(k.occ),
		})
	}

	if err := st.ReplaceStaffing(ctx, store.StaffingUS, staged); err != nil {
		return nil, eris.Wrap(err, "us_staffing: stage rows")
	}

	var sharedSources []string
	for code, segs := range usedSegments {
		if len(segs) > 1 {
			sharedSources = append(sharedSources, code)
		}
	}
	sort.Strings(sharedSources)

	metadata := map[string]any{
		"segments":          segmentsLoaded,
		"duplicate_sources": duplicateSources,
	}
	if len(missingFiles) > 0 {
		sort.Strings(missingFiles)
		metadata["missing_naics"] = strings.Join(missingFiles, ",")
	}
	if len(sharedSources) > 0 {
		metadata["shared_sources"] = strings.Join(sharedSources, ",")
		log.Warn("staffing sources shared across segments", zap.Strings("sources", sharedSources))
	}

	log.Info("staged national staffing rollup",
		zap.Int("segments", segmentsLoaded),
		zap.Int("rows", len(staged)),
		zap.Int("missing_files", len(missingFiles)),
		zap.Int("duplicate_sources", duplicateSources),
	)

	return &store.SyncResult{RowsSynced: int64(len(staged)), Metadata: metadata}, nil
}
