package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/nip-resolver/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS registry_cache (
	nip        TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS traces (
	id         TEXT PRIMARY KEY,
	raw        TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	nip        TEXT,
	cost_usd   REAL NOT NULL DEFAULT 0,
	trace      TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_registry_cache_expires_at ON registry_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_traces_outcome ON traces(outcome);
CREATE INDEX IF NOT EXISTS idx_traces_nip ON traces(nip);
CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCachedRegistry(ctx context.Context, nip string) (*model.RegistryRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM registry_cache WHERE nip = ? AND expires_at > ?`,
		nip, time.Now().UTC(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cached registry %s", nip)
	}

	var rec model.RegistryRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal registry record")
	}
	return &rec, nil
}

func (s *SQLiteStore) SetCachedRegistry(ctx context.Context, rec model.RegistryRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal registry record")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO registry_cache (nip, record, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (nip) DO UPDATE SET record = excluded.record, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		rec.NIP, string(data), now, now.Add(ttl),
	)
	return eris.Wrapf(err, "sqlite: set cached registry %s", rec.NIP)
}

func (s *SQLiteStore) DeleteExpiredRegistry(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM registry_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired registry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) SaveTrace(ctx context.Context, t *model.Trace) error {
	data, err := json.Marshal(t)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal trace")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO traces (id, raw, outcome, nip, cost_usd, trace, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET outcome = excluded.outcome, nip = excluded.nip,
		 cost_usd = excluded.cost_usd, trace = excluded.trace`,
		t.ID.String(), t.Raw, string(t.Outcome), t.NIP, t.CostUSD, string(data), t.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save trace %s", t.ID)
}

func (s *SQLiteStore) GetTrace(ctx context.Context, id uuid.UUID) (*model.Trace, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT trace FROM traces WHERE id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrTraceNotFound, "store: get trace %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get trace %s", id)
	}
	var t model.Trace
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal trace")
	}
	return &t, nil
}

func (s *SQLiteStore) ListTraces(ctx context.Context, filter TraceFilter) ([]TraceSummary, error) {
	query := `SELECT id, raw, outcome, COALESCE(nip, ''), cost_usd, created_at FROM traces`
	var where []string
	var args []any
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.NIP != "" {
		where = append(where, "nip = ?")
		args = append(args, filter.NIP)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list traces")
	}
	defer rows.Close() //nolint:errcheck

	var out []TraceSummary
	for rows.Next() {
		var (
			sum     TraceSummary
			id      string
			outcome string
		)
		if err := rows.Scan(&id, &sum.Raw, &outcome, &sum.NIP, &sum.CostUSD, &sum.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trace")
		}
		if sum.ID, err = uuid.Parse(id); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse trace id %s", id)
		}
		sum.Outcome = model.TraceOutcome(outcome)
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate traces")
}
