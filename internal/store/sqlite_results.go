package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/sells-group/workforce-cli/internal/model"
)

func (s *SQLiteStore) ReplaceSegmentSeries(ctx context.Context, key SeriesKey, points []model.SegmentPoint) error {
	inserts := make([][]any, 0, len(points))
	for _, p := range points {
		inserts = append(inserts, []any{
			string(key.Attribution), string(key.Growth),
			p.SegmentID, p.Segment, p.Year, p.Employment, string(p.ValueType), nullableFloat(p.AppliedYoYPct),
		})
	}
	return s.replaceAll(ctx,
		`DELETE FROM segment_series WHERE attribution = ? AND growth = ?`,
		[]any{string(key.Attribution), string(key.Growth)},
		`INSERT INTO segment_series (attribution, growth, segment_id, segment, year, employment, value_type, applied_yoy_pct)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) SegmentSeries(ctx context.Context, key SeriesKey) ([]model.SegmentPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, segment, year, employment, value_type, applied_yoy_pct
		 FROM segment_series WHERE attribution = ? AND growth = ? ORDER BY segment_id, year`,
		string(key.Attribution), string(key.Growth),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: segment series")
	}
	defer rows.Close()

	var out []model.SegmentPoint
	for rows.Next() {
		var p model.SegmentPoint
		var pct sql.NullFloat64
		if err := rows.Scan(&p.SegmentID, &p.Segment, &p.Year, &p.Employment, &p.ValueType, &pct); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan segment point")
		}
		p.AppliedYoYPct = scanNullFloat(pct)
		if p.ValueType == model.ValueForecast {
			p.Source = key.Growth
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: segment series iterate")
}

func (s *SQLiteStore) ReplaceStageSeries(ctx context.Context, key SeriesKey, points []model.StagePoint) error {
	inserts := make([][]any, 0, len(points))
	for _, p := range points {
		inserts = append(inserts, []any{
			string(key.Attribution), string(key.Growth),
			p.Stage, p.Year, p.Employment, string(p.ValueType), nullableFloat(p.AppliedYoYPct),
		})
	}
	return s.replaceAll(ctx,
		`DELETE FROM stage_series WHERE attribution = ? AND growth = ?`,
		[]any{string(key.Attribution), string(key.Growth)},
		`INSERT INTO stage_series (attribution, growth, stage, year, employment, value_type, applied_yoy_pct)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) StageSeries(ctx context.Context, key SeriesKey) ([]model.StagePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, year, employment, value_type, applied_yoy_pct
		 FROM stage_series WHERE attribution = ? AND growth = ? ORDER BY stage, year`,
		string(key.Attribution), string(key.Growth),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stage series")
	}
	defer rows.Close()

	var out []model.StagePoint
	for rows.Next() {
		var p model.StagePoint
		var pct sql.NullFloat64
		if err := rows.Scan(&p.Stage, &p.Year, &p.Employment, &p.ValueType, &pct); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage point")
		}
		p.AppliedYoYPct = scanNullFloat(pct)
		if p.ValueType == model.ValueForecast {
			p.Source = key.Growth
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: stage series iterate")
}

func (s *SQLiteStore) ReplaceSuppressions(ctx context.Context, rows []model.Suppression) error {
	inserts := make([][]any, 0, len(rows))
	for _, r := range rows {
		inserts = append(inserts, []any{r.NAICS, r.SegmentID, r.Year})
	}
	return s.replaceAll(ctx,
		`DELETE FROM suppression_audit`, nil,
		`INSERT INTO suppression_audit (naics, segment_id, year) VALUES (?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) Suppressions(ctx context.Context) ([]model.Suppression, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT naics, segment_id, year FROM suppression_audit ORDER BY naics, year`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: suppressions")
	}
	defer rows.Close()

	var out []model.Suppression
	for rows.Next() {
		var r model.Suppression
		if err := rows.Scan(&r.NAICS, &r.SegmentID, &r.Year); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan suppression")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: suppressions iterate")
}

func (s *SQLiteStore) ReplaceSegmentDiagnostics(ctx context.Context, source model.Attribution, rows []model.SegmentDiagnostics) error {
	inserts := make([][]any, 0, len(rows))
	for _, r := range rows {
		inserts = append(inserts, []any{
			string(source), r.SegmentID, r.Segment, r.EmploymentRaw, r.EmploymentAdjusted,
			r.NAICSCount, r.MatchedCount, r.ShareMin, r.ShareMax, r.ShareWeighted,
		})
	}
	return s.replaceAll(ctx,
		`DELETE FROM segment_diagnostics WHERE source = ?`, []any{string(source)},
		`INSERT INTO segment_diagnostics (source, segment_id, segment, employment_raw, employment_adjusted, naics_count, matched_count, share_min, share_max, share_weighted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) SegmentDiagnostics(ctx context.Context) ([]model.SegmentDiagnostics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, segment_id, segment, employment_raw, employment_adjusted, naics_count, matched_count, share_min, share_max, share_weighted
		 FROM segment_diagnostics ORDER BY source, segment_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: segment diagnostics")
	}
	defer rows.Close()

	var out []model.SegmentDiagnostics
	for rows.Next() {
		var r model.SegmentDiagnostics
		if err := rows.Scan(&r.Source, &r.SegmentID, &r.Segment, &r.EmploymentRaw, &r.EmploymentAdjusted,
			&r.NAICSCount, &r.MatchedCount, &r.ShareMin, &r.ShareMax, &r.ShareWeighted); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan segment diagnostics")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: segment diagnostics iterate")
}

func (s *SQLiteStore) ReplaceAttributionAudit(ctx context.Context, source model.Attribution, rows []model.AttributionAudit) error {
	inserts := make([][]any, 0, len(rows))
	for _, r := range rows {
		inserts = append(inserts, []any{
			string(source), r.NAICS, r.SegmentID, r.Year,
			r.EmploymentRaw, nullableFloat(r.Share), nullableFloat(r.EmploymentAdjusted),
		})
	}
	return s.replaceAll(ctx,
		`DELETE FROM attribution_audit WHERE source = ?`, []any{string(source)},
		`INSERT INTO attribution_audit (source, naics, segment_id, year, employment_raw, share, employment_adjusted)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) AttributionAudit(ctx context.Context) ([]model.AttributionAudit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, naics, segment_id, year, employment_raw, share, employment_adjusted
		 FROM attribution_audit ORDER BY source, naics, year`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: attribution audit")
	}
	defer rows.Close()

	var out []model.AttributionAudit
	for rows.Next() {
		var r model.AttributionAudit
		var share, adjusted sql.NullFloat64
		if err := rows.Scan(&r.Source, &r.NAICS, &r.SegmentID, &r.Year, &r.EmploymentRaw, &share, &adjusted); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attribution audit")
		}
		r.Share = scanNullFloat(share)
		r.EmploymentAdjusted = scanNullFloat(adjusted)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: attribution audit iterate")
}

// ReplaceGrowthRates swaps both the segment-level and stage-level rate
// tables for a source in one transaction so they cannot drift apart.
func (s *SQLiteStore) ReplaceGrowthRates(ctx context.Context, source model.GrowthSource, segRates []model.SegmentRate, stageRates []model.StageRate) error {
	inserts := make([][]any, 0, len(segRates)+len(stageRates))
	for _, r := range segRates {
		inserts = append(inserts, []any{string(source), "segment", r.SegmentID, "", r.Year, nullableFloat(r.Pct)})
	}
	for _, r := range stageRates {
		inserts = append(inserts, []any{string(source), "stage", 0, r.Stage, r.Year, nullableFloat(r.Pct)})
	}
	return s.replaceAll(ctx,
		`DELETE FROM growth_rates WHERE source = ?`, []any{string(source)},
		`INSERT INTO growth_rates (source, level, segment_id, stage, year, yoy_pct) VALUES (?, ?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) SegmentRates(ctx context.Context, source model.GrowthSource) ([]model.SegmentRate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, year, yoy_pct FROM growth_rates
		 WHERE source = ? AND level = 'segment' ORDER BY segment_id, year`,
		string(source),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: segment rates %s", source)
	}
	defer rows.Close()

	var out []model.SegmentRate
	for rows.Next() {
		r := model.SegmentRate{Source: source}
		var pct sql.NullFloat64
		if err := rows.Scan(&r.SegmentID, &r.Year, &pct); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan segment rate")
		}
		r.Pct = scanNullFloat(pct)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: segment rates iterate")
}

func (s *SQLiteStore) StageRates(ctx context.Context, source model.GrowthSource) ([]model.StageRate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, year, yoy_pct FROM growth_rates
		 WHERE source = ? AND level = 'stage' ORDER BY stage, year`,
		string(source),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: stage rates %s", source)
	}
	defer rows.Close()

	var out []model.StageRate
	for rows.Next() {
		r := model.StageRate{Source: source}
		var pct sql.NullFloat64
		if err := rows.Scan(&r.Stage, &r.Year, &pct); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage rate")
		}
		r.Pct = scanNullFloat(pct)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: stage rates iterate")
}

func (s *SQLiteStore) ReplaceOccupationForecasts(ctx context.Context, m model.Methodology, rows []model.OccupationForecast) error {
	inserts := make([][]any, 0, len(rows))
	for _, r := range rows {
		inserts = append(inserts, []any{
			string(m.Attribution), string(m.Growth),
			r.SegmentID, r.Segment, r.OccCode, r.OccTitle, r.Year, r.Employment, boolInt(r.HasShiftData),
		})
	}
	return s.replaceAll(ctx,
		`DELETE FROM occupation_forecasts WHERE attribution = ? AND growth = ?`,
		[]any{string(m.Attribution), string(m.Growth)},
		`INSERT INTO occupation_forecasts (attribution, growth, segment_id, segment, occ_code, occ_title, year, employment, has_shift)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) OccupationForecasts(ctx context.Context, m model.Methodology) ([]model.OccupationForecast, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, segment, occ_code, occ_title, year, employment, has_shift
		 FROM occupation_forecasts WHERE attribution = ? AND growth = ?
		 ORDER BY segment_id, occ_code, year`,
		string(m.Attribution), string(m.Growth),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: occupation forecasts %s", m.Key())
	}
	defer rows.Close()

	var out []model.OccupationForecast
	for rows.Next() {
		r := model.OccupationForecast{Attribution: m.Attribution, Growth: m.Growth}
		var hasShift int
		if err := rows.Scan(&r.SegmentID, &r.Segment, &r.OccCode, &r.OccTitle, &r.Year, &r.Employment, &hasShift); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan occupation forecast")
		}
		r.HasShiftData = hasShift != 0
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: occupation forecasts iterate")
}

func (s *SQLiteStore) ReplaceValidationResults(ctx context.Context, m model.Methodology, rows []model.ValidationResult) error {
	inserts := make([][]any, 0, len(rows))
	for _, r := range rows {
		inserts = append(inserts, []any{
			m.Key(), r.SegmentID, r.Segment, r.Year, r.SegmentTotal, r.OccupationSum, r.PctDiff, boolInt(r.Pass),
		})
	}
	return s.replaceAll(ctx,
		`DELETE FROM validation_results WHERE methodology = ?`, []any{m.Key()},
		`INSERT INTO validation_results (methodology, segment_id, segment, year, segment_total, occupation_sum, pct_diff, pass)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inserts,
	)
}

func (s *SQLiteStore) ValidationResults(ctx context.Context) ([]model.ValidationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT methodology, segment_id, segment, year, segment_total, occupation_sum, pct_diff, pass
		 FROM validation_results ORDER BY methodology, segment_id, year`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: validation results")
	}
	defer rows.Close()

	var out []model.ValidationResult
	for rows.Next() {
		var r model.ValidationResult
		var pass int
		if err := rows.Scan(&r.Methodology, &r.SegmentID, &r.Segment, &r.Year, &r.SegmentTotal, &r.OccupationSum, &r.PctDiff, &pass); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan validation result")
		}
		r.Pass = pass != 0
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: validation results iterate")
}
