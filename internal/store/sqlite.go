package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/product-battle/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLite opens dsn with the pragmas shared by every SQLite-backed
// component.
func OpenSQLite(dsn string) (*sql.DB, error) {
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return db, nil
}

// Expiry is stored as unix seconds so comparisons stay numeric.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	key        TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	built_at   INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS discovery_cache (
	key           TEXT PRIMARY KEY,
	urls          TEXT NOT NULL,
	discovered_at INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discovery_cache_expires_at ON discovery_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, key string) (*model.AnalysisRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM analyses WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", key)
	}
	return decodeRecord([]byte(raw))
}

func (s *SQLiteStore) PutAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (key, record, built_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET record = excluded.record, built_at = excluded.built_at, updated_at = excluded.updated_at`,
		rec.Key, string(data), rec.BuiltAt.Unix(), time.Now().Unix(),
	)
	return eris.Wrapf(err, "sqlite: put analysis %s", rec.Key)
}

func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: delete analysis %s", key)
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context) ([]model.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM analyses ORDER BY key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var out []model.AnalysisRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func (s *SQLiteStore) GetCachedDiscovery(ctx context.Context, key string) (*model.DiscoveryCache, error) {
	var urlsJSON string
	var discoveredAt, expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT urls, discovered_at, expires_at FROM discovery_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().Unix(),
	).Scan(&urlsJSON, &discoveredAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cached discovery %s", key)
	}

	dc := &model.DiscoveryCache{
		Key:          key,
		DiscoveredAt: time.Unix(discoveredAt, 0).UTC(),
		ExpiresAt:    time.Unix(expiresAt, 0).UTC(),
	}
	if err := json.Unmarshal([]byte(urlsJSON), &dc.URLs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached urls")
	}
	return dc, nil
}

func (s *SQLiteStore) SetCachedDiscovery(ctx context.Context, key string, urls []string, ttl time.Duration) error {
	if urls == nil {
		urls = []string{}
	}
	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal urls")
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO discovery_cache (key, urls, discovered_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET urls = excluded.urls, discovered_at = excluded.discovered_at, expires_at = excluded.expires_at`,
		key, string(urlsJSON), now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrapf(err, "sqlite: set cached discovery %s", key)
}

func decodeRecord(data []byte) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal analysis")
	}
	return &rec, nil
}
