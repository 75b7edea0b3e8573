package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/workforce-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS industry_employment (
	naics      TEXT NOT NULL,
	year       INTEGER NOT NULL,
	employment REAL,
	PRIMARY KEY (naics, year)
);

CREATE TABLE IF NOT EXISTS moodys_series (
	geography TEXT NOT NULL,
	metric    TEXT NOT NULL,
	naics     TEXT NOT NULL,
	year      INTEGER NOT NULL,
	value     REAL,
	PRIMARY KEY (geography, metric, naics, year)
);

CREATE TABLE IF NOT EXISTS attribution_shares (
	source TEXT NOT NULL,
	naics  TEXT NOT NULL,
	share  REAL NOT NULL,
	PRIMARY KEY (source, naics)
);

CREATE TABLE IF NOT EXISTS staffing (
	source     TEXT NOT NULL,
	segment_id INTEGER NOT NULL,
	segment    TEXT NOT NULL,
	occ_code   TEXT NOT NULL,
	occ_title  TEXT NOT NULL,
	year       INTEGER NOT NULL,
	employment REAL NOT NULL,
	occ_level  TEXT NOT NULL,
	is_total   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (source, segment_id, occ_code, year)
);

CREATE TABLE IF NOT EXISTS occupation_profiles (
	occ_code        TEXT PRIMARY KEY,
	entry_education TEXT NOT NULL DEFAULT '',
	work_experience TEXT NOT NULL DEFAULT '',
	otj_training    TEXT NOT NULL DEFAULT '',
	education_group TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS segment_series (
	attribution     TEXT NOT NULL DEFAULT '',
	growth          TEXT NOT NULL DEFAULT '',
	segment_id      INTEGER NOT NULL,
	segment         TEXT NOT NULL,
	year            INTEGER NOT NULL,
	employment      REAL NOT NULL,
	value_type      TEXT NOT NULL,
	applied_yoy_pct REAL,
	PRIMARY KEY (attribution, growth, segment_id, year)
);

CREATE TABLE IF NOT EXISTS suppression_audit (
	naics      TEXT NOT NULL,
	segment_id INTEGER NOT NULL,
	year       INTEGER NOT NULL,
	PRIMARY KEY (naics, year)
);

CREATE TABLE IF NOT EXISTS attribution_audit (
	source              TEXT NOT NULL,
	naics               TEXT NOT NULL,
	segment_id          INTEGER NOT NULL,
	year                INTEGER NOT NULL,
	employment_raw      REAL NOT NULL,
	share               REAL,
	employment_adjusted REAL,
	PRIMARY KEY (source, naics, year)
);

CREATE TABLE IF NOT EXISTS stage_series (
	attribution     TEXT NOT NULL DEFAULT '',
	growth          TEXT NOT NULL DEFAULT '',
	stage           TEXT NOT NULL,
	year            INTEGER NOT NULL,
	employment      REAL NOT NULL,
	value_type      TEXT NOT NULL,
	applied_yoy_pct REAL,
	PRIMARY KEY (attribution, growth, stage, year)
);

CREATE TABLE IF NOT EXISTS segment_diagnostics (
	source              TEXT NOT NULL,
	segment_id          INTEGER NOT NULL,
	segment             TEXT NOT NULL,
	employment_raw      REAL NOT NULL,
	employment_adjusted REAL NOT NULL,
	naics_count         INTEGER NOT NULL,
	matched_count       INTEGER NOT NULL,
	share_min           REAL NOT NULL,
	share_max           REAL NOT NULL,
	share_weighted      REAL NOT NULL,
	PRIMARY KEY (source, segment_id)
);

CREATE TABLE IF NOT EXISTS growth_rates (
	source     TEXT NOT NULL,
	level      TEXT NOT NULL,
	segment_id INTEGER NOT NULL DEFAULT 0,
	stage      TEXT NOT NULL DEFAULT '',
	year       INTEGER NOT NULL,
	yoy_pct    REAL,
	PRIMARY KEY (source, level, segment_id, stage, year)
);

CREATE TABLE IF NOT EXISTS occupation_forecasts (
	attribution TEXT NOT NULL,
	growth      TEXT NOT NULL,
	segment_id  INTEGER NOT NULL,
	segment     TEXT NOT NULL,
	occ_code    TEXT NOT NULL,
	occ_title   TEXT NOT NULL,
	year        INTEGER NOT NULL,
	employment  REAL NOT NULL,
	has_shift   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (attribution, growth, segment_id, occ_code, year)
);

CREATE TABLE IF NOT EXISTS validation_results (
	methodology    TEXT NOT NULL,
	segment_id     INTEGER NOT NULL,
	segment        TEXT NOT NULL,
	year           INTEGER NOT NULL,
	segment_total  REAL NOT NULL,
	occupation_sum REAL NOT NULL,
	pct_diff       REAL NOT NULL,
	pass           INTEGER NOT NULL,
	PRIMARY KEY (methodology, segment_id, year)
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'queued',
	base_year    INTEGER NOT NULL,
	horizon_year INTEGER NOT NULL,
	result       TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	rows_synced  INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	metadata     TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_sync_log_dataset ON sync_log(dataset, started_at);
CREATE INDEX IF NOT EXISTS idx_occupation_forecasts_year ON occupation_forecasts(year);
CREATE INDEX IF NOT EXISTS idx_staffing_occ ON staffing(occ_code);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, baseYear, horizonYear int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, base_year, horizon_year, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(model.RunStatusQueued), baseYear, horizonYear, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:          id,
		Status:      model.RunStatusQueued,
		BaseYear:    baseYear,
		HorizonYear: horizonYear,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, base_year, horizon_year, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, base_year, horizon_year, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// --- Sync log ---

func (s *SQLiteStore) StartSync(ctx context.Context, dataset string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (dataset, status, started_at) VALUES (?, 'running', ?)`,
		dataset, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: start sync for %s", dataset)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: sync id")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteSync(ctx context.Context, syncID int64, result *SyncResult) error {
	var metaJSON []byte
	if result != nil && result.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(result.Metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal sync metadata")
		}
	}

	rowsSynced := int64(0)
	if result != nil {
		rowsSynced = result.RowsSynced
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_log SET status = 'complete', completed_at = ?, rows_synced = ?, metadata = ? WHERE id = ?`,
		time.Now().UTC(), rowsSynced, nullableString(metaJSON), syncID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete sync %d", syncID)
	}
	return checkRowsAffected(res, "sync", "")
}

func (s *SQLiteStore) FailSync(ctx context.Context, syncID int64, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_log SET status = 'failed', completed_at = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), errMsg, syncID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail sync %d", syncID)
	}
	return checkRowsAffected(res, "sync", "")
}

// LastSuccess returns the started_at time of the most recent completed sync
// for a dataset, or nil if it has never synced successfully.
func (s *SQLiteStore) LastSuccess(ctx context.Context, dataset string) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM sync_log
		 WHERE dataset = ? AND status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
		dataset,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: last success for %s", dataset)
	}
	return &t, nil
}

func (s *SQLiteStore) ListSyncs(ctx context.Context) ([]SyncEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset, status, started_at, completed_at, rows_synced, error, metadata
		 FROM sync_log ORDER BY started_at DESC, id DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list syncs")
	}
	defer rows.Close()

	var entries []SyncEntry
	for rows.Next() {
		var e SyncEntry
		var completedAt sql.NullTime
		var errStr, metaJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Dataset, &e.Status, &e.StartedAt, &completedAt, &e.RowsSynced, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync entry")
		}
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		if errStr.Valid {
			e.Error = errStr.String
		}
		if metaJSON.Valid {
			_ = json.Unmarshal([]byte(metaJSON.String), &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list syncs iterate")
}

// --- helpers ---

// replaceAll swaps the rows matched by deleteQuery for the given inserts in
// one transaction.
func (s *SQLiteStore) replaceAll(ctx context.Context, deleteQuery string, deleteArgs []any, insertQuery string, inserts [][]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return eris.Wrap(err, "sqlite: clear rows")
	}

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for _, args := range inserts {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrap(err, "sqlite: insert row")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		if id == "" {
			return eris.Errorf("%s not found", entity)
		}
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func scanNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Status, &r.BaseYear, &r.HorizonYear, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
