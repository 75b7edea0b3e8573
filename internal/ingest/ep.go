package ingest

import (
	"context"
	"os"
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
)

// EPProfiles stages the national employment-projections occupation table:
// per-occupation typical entry education, prior work experience, and
// on-the-job training. The workbook is downloaded on demand when the local
// copy is absent.
type EPProfiles struct {
	cfg *config.Config
}

func (d *EPProfiles) Name() string     { return "ep_profiles" }
func (d *EPProfiles) Table() string    { return "occupation_profiles" }
func (d *EPProfiles) Group() Group     { return GroupStaffing }
func (d *EPProfiles) Cadence() Cadence { return Annual }

func (d *EPProfiles) ShouldRun(now time.Time, lastSync *time.Time) bool {
	return AnnualAfter(now, lastSync, time.September)
}

var socCodeRe = regexp.MustCompile(`^\d{2}-\d{4}$`)

func (d *EPProfiles) Sync(ctx context.Context, st store.Store, f fetcher.Fetcher, dataDir string) (*store.SyncResult, error) {
	log := zap.L().With(zap.String("dataset", "ep_profiles"))

	path := resolvePath(dataDir, d.cfg.Sources.EPTablePath)
	if _, err := os.Stat(path); err != nil {
		if d.cfg.Sources.EPTableURL == "" {
			return nil, eris.Wrapf(err, "ep_profiles: %s not found and no source URL configured", path)
		}
		log.Info("downloading projections table", zap.String("url", d.cfg.Sources.EPTableURL))
		if _, err := f.DownloadToFile(ctx, d.cfg.Sources.EPTableURL, path); err != nil {
			return nil, eris.Wrap(err, "ep_profiles: download projections table")
		}
	}

	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: "Table 1.2", SkipRows: 1})
	if err != nil {
		return nil, eris.Wrapf(err, "ep_profiles: read %s", path)
	}
	if len(rows) < 2 {
		return nil, eris.Errorf("ep_profiles: %s has no data rows", path)
	}
	header, rows := rows[0], rows[1:]

	colCode, err := findColumn(header, "matrix", "code")
	if err != nil {
		return nil, eris.Wrap(err, "ep_profiles")
	}
	colEducation, err := findColumn(header, "education needed")
	if err != nil {
		return nil, eris.Wrap(err, "ep_profiles")
	}
	colExperience, err := findColumn(header, "work experience")
	if err != nil {
		return nil, eris.Wrap(err, "ep_profiles")
	}
	colTraining, err := findColumn(header, "on-the-job training")
	if err != nil {
		return nil, eris.Wrap(err, "ep_profiles")
	}

	cell := func(row []string, idx int) string {
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	byCode := make(map[string]model.OccupationProfile)
	var codes []string
	ungrouped := 0
	for _, row := range rows {
		code := cell(row, colCode)
		// Footnote rows below the table carry prose in the code column.
		if !socCodeRe.MatchString(code) {
			continue
		}
		if _, seen := byCode[code]; seen {
			continue
		}
		entry := cell(row, colEducation)
		p := model.OccupationProfile{
			OccCode:          code,
			EntryEducation:   entry,
			WorkExperience:   cell(row, colExperience),
			OnTheJobTraining: cell(row, colTraining),
			EducationGroup:   model.GroupEducation(entry),
		}
		if p.EducationGroup == "" && entry != "" {
			ungrouped++
		}
		byCode[code] = p
		codes = append(codes, code)
	}

	if len(byCode) == 0 {
		return nil, eris.Errorf("ep_profiles: %s yielded no occupation rows", path)
	}

	sort.Strings(codes)
	staged := make([]model.OccupationProfile, 0, len(codes))
	for _, code := range codes {
		staged = append(staged, byCode[code])
	}

	if err := st.ReplaceOccupationProfiles(ctx, staged); err != nil {
		return nil, eris.Wrap(err, "ep_profiles: stage rows")
	}

	if ungrouped > 0 {
		log.Warn("entry-education levels outside the summary groups", zap.Int("occupations", ungrouped))
	}
	log.Info("staged occupation profiles", zap.Int("occupations", len(staged)))

	return &store.SyncResult{
		RowsSynced: int64(len(staged)),
		Metadata:   map[string]any{"occupations": len(staged), "ungrouped_education": ungrouped},
	}, nil
}
