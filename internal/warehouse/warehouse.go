// Package warehouse publishes finished forecast tables to a Postgres
// warehouse. The segment series (census rollup plus every methodology
// branch) and the occupation forecasts are bulk-upserted so repeated
// publishes of the same run are idempotent.
package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/db"
	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
)

// rawLabel tags the unattributed census rollup in the methodology column.
const rawLabel = "qcew"

var segmentColumns = []string{
	"methodology", "segment_id", "segment_name", "year",
	"employment", "value_type", "growth_source", "applied_yoy_pct",
}

var occupationColumns = []string{
	"methodology", "segment_id", "segment_name", "occ_code", "occ_title",
	"year", "employment", "attribution", "growth_source", "has_bls_shift",
}

// Publisher copies staged series out of the store into the warehouse.
type Publisher struct {
	store  store.Store
	pool   db.Pool
	schema string
}

// New returns a publisher writing into the given schema.
func New(st store.Store, pool db.Pool, schema string) *Publisher {
	return &Publisher{store: st, pool: pool, schema: schema}
}

// Result summarizes one publish.
type Result struct {
	SegmentRows    int64 `json:"segment_rows"`
	OccupationRows int64 `json:"occupation_rows"`
	Branches       int   `json:"branches"`
}

// Migrate creates the warehouse schema and target tables.
func (p *Publisher) Migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{p.schema}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			methodology     TEXT NOT NULL,
			segment_id      INTEGER NOT NULL,
			segment_name    TEXT NOT NULL,
			year            INTEGER NOT NULL,
			employment      DOUBLE PRECISION NOT NULL,
			value_type      TEXT NOT NULL,
			growth_source   TEXT NOT NULL DEFAULT '',
			applied_yoy_pct DOUBLE PRECISION,
			PRIMARY KEY (methodology, segment_id, year)
		)`, pgx.Identifier{p.schema, "segment_series"}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			methodology   TEXT NOT NULL,
			segment_id    INTEGER NOT NULL,
			segment_name  TEXT NOT NULL,
			occ_code      TEXT NOT NULL,
			occ_title     TEXT NOT NULL,
			year          INTEGER NOT NULL,
			employment    DOUBLE PRECISION NOT NULL,
			attribution   TEXT NOT NULL,
			growth_source TEXT NOT NULL,
			has_bls_shift BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (methodology, segment_id, occ_code, year)
		)`, pgx.Identifier{p.schema, "occupation_forecasts"}.Sanitize()),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "warehouse: migrate")
		}
	}
	return nil
}

// Publish upserts the segment series and occupation forecasts. Branches
// that were never extended are skipped with a warning; having nothing
// staged at all is an error.
func (p *Publisher) Publish(ctx context.Context) (*Result, error) {
	res := &Result{}

	var segRows [][]any
	appendSeries := func(label string, pts []model.SegmentPoint) {
		for _, pt := range pts {
			segRows = append(segRows, []any{
				label, pt.SegmentID, pt.Segment, pt.Year,
				pt.Employment, string(pt.ValueType), string(pt.Source), pt.AppliedYoYPct,
			})
		}
	}

	raw, err := p.store.SegmentSeries(ctx, store.SeriesKey{})
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: load census rollup")
	}
	if len(raw) == 0 {
		zap.L().Warn("warehouse: no census rollup staged, publishing branches only")
	}
	appendSeries(rawLabel, raw)

	for _, m := range model.AllMethodologies() {
		pts, err := p.store.SegmentSeries(ctx, store.SeriesKey{Attribution: m.Attribution, Growth: m.Growth})
		if err != nil {
			return nil, eris.Wrapf(err, "warehouse: load %s segment series", m.Key())
		}
		if len(pts) == 0 {
			zap.L().Warn("warehouse: branch has no segment series, skipped",
				zap.String("methodology", m.Key()))
			continue
		}
		res.Branches++
		appendSeries(m.Key(), pts)
	}
	if res.Branches == 0 {
		return nil, eris.New("warehouse: no methodology series staged; run the forecast first")
	}

	res.SegmentRows, err = db.BulkUpsert(ctx, p.pool, db.UpsertConfig{
		Table:        p.schema + ".segment_series",
		Columns:      segmentColumns,
		ConflictKeys: []string{"methodology", "segment_id", "year"},
	}, segRows)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: publish segment series")
	}

	var occRows [][]any
	for _, m := range model.AllMethodologies() {
		rows, err := p.store.OccupationForecasts(ctx, m)
		if err != nil {
			return nil, eris.Wrapf(err, "warehouse: load %s forecasts", m.Key())
		}
		for _, r := range rows {
			occRows = append(occRows, []any{
				m.Key(), r.SegmentID, r.Segment, r.OccCode, r.OccTitle,
				r.Year, r.Employment, string(r.Attribution), string(r.Growth), r.HasShiftData,
			})
		}
	}
	if len(occRows) == 0 {
		return nil, eris.New("warehouse: no occupation forecasts staged; run the forecast first")
	}

	res.OccupationRows, err = db.BulkUpsert(ctx, p.pool, db.UpsertConfig{
		Table:        p.schema + ".occupation_forecasts",
		Columns:      occupationColumns,
		ConflictKeys: []string{"methodology", "segment_id", "occ_code", "year"},
	}, occRows)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: publish occupation forecasts")
	}

	zap.L().Info("warehouse: publish complete",
		zap.String("schema", p.schema),
		zap.Int("branches", res.Branches),
		zap.Int64("segment_rows", res.SegmentRows),
		zap.Int64("occupation_rows", res.OccupationRows),
	)
	return res, nil
}
