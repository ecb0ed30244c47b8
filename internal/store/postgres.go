package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nip-resolver/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS registry_cache (
	nip        TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS traces (
	id         UUID PRIMARY KEY,
	raw        TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	nip        TEXT,
	cost_usd   DOUBLE PRECISION NOT NULL DEFAULT 0,
	trace      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_registry_cache_expires_at ON registry_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_traces_outcome ON traces(outcome);
CREATE INDEX IF NOT EXISTS idx_traces_nip ON traces(nip);
CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetCachedRegistry(ctx context.Context, nip string) (*model.RegistryRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM registry_cache WHERE nip = $1 AND expires_at > now()`,
		nip,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cached registry %s", nip)
	}

	var rec model.RegistryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal registry record")
	}
	return &rec, nil
}

func (s *PostgresStore) SetCachedRegistry(ctx context.Context, rec model.RegistryRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal registry record")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO registry_cache (nip, record, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (nip) DO UPDATE SET record = $2, cached_at = $3, expires_at = $4`,
		rec.NIP, data, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: set cached registry %s", rec.NIP)
}

func (s *PostgresStore) DeleteExpiredRegistry(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM registry_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired registry")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) SaveTrace(ctx context.Context, t *model.Trace) error {
	data, err := json.Marshal(t)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal trace")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO traces (id, raw, outcome, nip, cost_usd, trace, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET outcome = $3, nip = $4, cost_usd = $5, trace = $6`,
		t.ID, t.Raw, string(t.Outcome), t.NIP, t.CostUSD, data, t.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save trace %s", t.ID)
}

func (s *PostgresStore) GetTrace(ctx context.Context, id uuid.UUID) (*model.Trace, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT trace FROM traces WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrTraceNotFound, "store: get trace %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get trace %s", id)
	}
	var t model.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal trace")
	}
	return &t, nil
}

func (s *PostgresStore) ListTraces(ctx context.Context, filter TraceFilter) ([]TraceSummary, error) {
	query := `SELECT id, raw, outcome, COALESCE(nip, ''), cost_usd, created_at FROM traces`
	var where []string
	var args []any
	if filter.Outcome != "" {
		args = append(args, string(filter.Outcome))
		where = append(where, fmt.Sprintf("outcome = $%d", len(args)))
	}
	if filter.NIP != "" {
		args = append(args, filter.NIP)
		where = append(where, fmt.Sprintf("nip = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list traces")
	}
	defer rows.Close()

	var out []TraceSummary
	for rows.Next() {
		var (
			sum     TraceSummary
			outcome string
		)
		if err := rows.Scan(&sum.ID, &sum.Raw, &outcome, &sum.NIP, &sum.CostUSD, &sum.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trace")
		}
		sum.Outcome = model.TraceOutcome(outcome)
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate traces")
}
