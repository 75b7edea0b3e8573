package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/sells-group/workforce-cli/internal/model"
)

func (s *SQLiteStore) ReplaceIndustryEmployment(ctx context.Context, rows []model.IndustryEmployment) error {
	inserts := make([][]any, 0, len(rows))
	for _, r := range rows {
		inserts = append(inserts, []any{r.NAICS, r.Year, nullableFloat(r.Employment)})
	}
	return s.replaceAll(ctx,
		`DELETE FROM industry_employment`, nil,
		`INSERT INTO industry_employment (naics, year, employment) VALUES (?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) IndustryEmployment(ctx context.Context) ([]model.IndustryEmployment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT naics, year, employment FROM industry_employment ORDER BY naics, year`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: industry employment")
	}
	defer rows.Close()

	var out []model.IndustryEmployment
	for rows.Next() {
		var r model.IndustryEmployment
		var emp sql.NullFloat64
		if err := rows.Scan(&r.NAICS, &r.Year, &emp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan industry employment")
		}
		r.Employment = scanNullFloat(emp)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: industry employment iterate")
}

func (s *SQLiteStore) ReplaceMoodysSeries(ctx context.Context, geography, metric string, rows []MoodysRow) error {
	inserts := make([][]any, 0, len(rows))
	for _, r := range rows {
		inserts = append(inserts, []any{geography, metric, r.NAICS, r.Year, nullableFloat(r.Value)})
	}
	return s.replaceAll(ctx,
		`DELETE FROM moodys_series WHERE geography = ? AND metric = ?`, []any{geography, metric},
		`INSERT INTO moodys_series (geography, metric, naics, year, value) VALUES (?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) MoodysSeries(ctx context.Context, geography, metric string) ([]MoodysRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT geography, metric, naics, year, value FROM moodys_series
		 WHERE geography = ? AND metric = ? ORDER BY naics, year`,
		geography, metric,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: moodys series %s/%s", geography, metric)
	}
	defer rows.Close()

	var out []MoodysRow
	for rows.Next() {
		var r MoodysRow
		var v sql.NullFloat64
		if err := rows.Scan(&r.Geography, &r.Metric, &r.NAICS, &r.Year, &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan moodys row")
		}
		r.Value = scanNullFloat(v)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: moodys series iterate")
}

func (s *SQLiteStore) ReplaceAttributionShares(ctx context.Context, source model.Attribution, shares []model.AttributionShare) error {
	inserts := make([][]any, 0, len(shares))
	for _, r := range shares {
		inserts = append(inserts, []any{string(source), r.NAICS, r.Share})
	}
	return s.replaceAll(ctx,
		`DELETE FROM attribution_shares WHERE source = ?`, []any{string(source)},
		`INSERT INTO attribution_shares (source, naics, share) VALUES (?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) AttributionShares(ctx context.Context, source model.Attribution) ([]model.AttributionShare, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, naics, share FROM attribution_shares WHERE source = ? ORDER BY naics`,
		string(source),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: attribution shares %s", source)
	}
	defer rows.Close()

	var out []model.AttributionShare
	for rows.Next() {
		var r model.AttributionShare
		if err := rows.Scan(&r.Source, &r.NAICS, &r.Share); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attribution share")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: attribution shares iterate")
}

func (s *SQLiteStore) ReplaceStaffing(ctx context.Context, source string, rows []model.StaffingRow) error {
	inserts := make([][]any, 0, len(rows))
	for _, r := range rows {
		inserts = append(inserts, []any{
			source, r.SegmentID, r.Segment, r.OccCode, r.OccTitle,
			r.Year, r.Employment, string(r.OccLevel), boolInt(r.IsTotal),
		})
	}
	return s.replaceAll(ctx,
		`DELETE FROM staffing WHERE source = ?`, []any{source},
		`INSERT INTO staffing (source, segment_id, segment, occ_code, occ_title, year, employment, occ_level, is_total)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) Staffing(ctx context.Context, source string) ([]model.StaffingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, segment, occ_code, occ_title, year, employment, occ_level, is_total
		 FROM staffing WHERE source = ? ORDER BY segment_id, occ_code, year`,
		source,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: staffing %s", source)
	}
	defer rows.Close()

	var out []model.StaffingRow
	for rows.Next() {
		var r model.StaffingRow
		var isTotal int
		if err := rows.Scan(&r.SegmentID, &r.Segment, &r.OccCode, &r.OccTitle, &r.Year, &r.Employment, &r.OccLevel, &isTotal); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan staffing row")
		}
		r.IsTotal = isTotal != 0
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: staffing iterate")
}

func (s *SQLiteStore) ReplaceOccupationProfiles(ctx context.Context, rows []model.OccupationProfile) error {
	inserts := make([][]any, 0, len(rows))
	for _, r := range rows {
		inserts = append(inserts, []any{
			r.OccCode, r.EntryEducation, r.WorkExperience, r.OnTheJobTraining, string(r.EducationGroup),
		})
	}
	return s.replaceAll(ctx,
		`DELETE FROM occupation_profiles`, nil,
		`INSERT INTO occupation_profiles (occ_code, entry_education, work_experience, otj_training, education_group)
		 VALUES (?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) OccupationProfiles(ctx context.Context) (map[string]model.OccupationProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT occ_code, entry_education, work_experience, otj_training, education_group FROM occupation_profiles`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: occupation profiles")
	}
	defer rows.Close()

	out := make(map[string]model.OccupationProfile)
	for rows.Next() {
		var r model.OccupationProfile
		if err := rows.Scan(&r.OccCode, &r.EntryEducation, &r.WorkExperience, &r.OnTheJobTraining, &r.EducationGroup); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan occupation profile")
		}
		out[r.OccCode] = r
	}
	return out, eris.Wrap(rows.Err(), "sqlite: occupation profiles iterate")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
