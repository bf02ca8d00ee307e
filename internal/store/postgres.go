package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/product-battle/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	key        TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	score      SMALLINT NOT NULL CHECK (score BETWEEN 0 AND 100),
	built_at   TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS discovery_cache (
	key           TEXT PRIMARY KEY,
	urls          JSONB NOT NULL,
	discovered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discovery_cache_expires_at ON discovery_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, key string) (*model.AnalysisRecord, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM analyses WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get analysis %s", key)
	}
	return decodeRecord(raw)
}

func (s *PostgresStore) PutAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (key, record, score, built_at, updated_at) VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (key) DO UPDATE SET record = $2, score = $3, built_at = $4, updated_at = now()`,
		rec.Key, data, rec.SentimentScore, rec.BuiltAt,
	)
	return eris.Wrapf(err, "postgres: put analysis %s", rec.Key)
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete analysis %s", key)
}

func (s *PostgresStore) ListAnalyses(ctx context.Context) ([]model.AnalysisRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM analyses ORDER BY key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var out []model.AnalysisRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) GetCachedDiscovery(ctx context.Context, key string) (*model.DiscoveryCache, error) {
	dc := model.DiscoveryCache{Key: key}
	var urlsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT urls, discovered_at, expires_at FROM discovery_cache
		 WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&urlsJSON, &dc.DiscoveredAt, &dc.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get cached discovery %s", key)
	}
	if err := json.Unmarshal(urlsJSON, &dc.URLs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached urls")
	}
	return &dc, nil
}

func (s *PostgresStore) SetCachedDiscovery(ctx context.Context, key string, urls []string, ttl time.Duration) error {
	if urls == nil {
		urls = []string{}
	}
	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal urls")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO discovery_cache (key, urls, discovered_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET urls = $2, discovered_at = $3, expires_at = $4`,
		key, urlsJSON, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: set cached discovery %s", key)
}
