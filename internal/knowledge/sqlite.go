package knowledge

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-battle/internal/model"
	"github.com/sells-group/product-battle/internal/store"
)

// SQLiteIndex is an Index persisted in SQLite. Embeddings are stored as
// little-endian float32 blobs and ranked in process, which is fine at the
// tens-of-documents-per-product scale ingestion produces.
type SQLiteIndex struct {
	db       *sql.DB
	embedder Embedder
}

// NewSQLiteIndex opens (or creates) the index at path.
func NewSQLiteIndex(path string, embedder Embedder) (*SQLiteIndex, error) {
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: open")
	}
	idx := &SQLiteIndex{db: db, embedder: embedder}
	if err := idx.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

const knowledgeMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT NOT NULL,
	key        TEXT NOT NULL,
	text       TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	embedding  BLOB NOT NULL,
	embedder   TEXT NOT NULL,
	indexed_at INTEGER NOT NULL,
	PRIMARY KEY (key, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_key ON documents(key);
`

func (s *SQLiteIndex) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, knowledgeMigration)
	return eris.Wrap(err, "knowledge: migrate")
}

// Close closes the database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndex) Upsert(ctx context.Context, docs ...model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vecs, err := s.embedder.Embed(ctx, texts, TaskDocument)
	if err != nil {
		return eris.Wrap(err, "knowledge: embed documents")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "knowledge: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().Unix()
	for i, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return eris.Wrap(err, "knowledge: marshal metadata")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (id, key, text, metadata, embedding, embedder, indexed_at) VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (key, id) DO UPDATE SET text = excluded.text, metadata = excluded.metadata,
			   embedding = excluded.embedding, embedder = excluded.embedder, indexed_at = excluded.indexed_at`,
			d.ID, d.Key, d.Text, string(meta), encodeVector(vecs[i]), s.embedder.Name(), now,
		)
		if err != nil {
			return eris.Wrapf(err, "knowledge: upsert %s", d.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "knowledge: commit")
}

func (s *SQLiteIndex) Query(ctx context.Context, key, text string, topN int) ([]model.Document, error) {
	if topN <= 0 {
		topN = 15
	}
	qv, err := s.embedder.Embed(ctx, []string{text}, TaskQuery)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: embed query")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding, embedder FROM documents WHERE key = ?`, key)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: query")
	}
	defer rows.Close()

	var docs []model.Document
	skipped := 0
	for rows.Next() {
		var (
			d        = model.Document{Key: key}
			meta     string
			blob     []byte
			embedder string
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta, &blob, &embedder); err != nil {
			return nil, eris.Wrap(err, "knowledge: scan")
		}
		if embedder != s.embedder.Name() {
			skipped++
			continue
		}
		if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
			return nil, eris.Wrap(err, "knowledge: unmarshal metadata")
		}
		d.Score = Cosine(qv[0], decodeVector(blob))
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "knowledge: query iterate")
	}
	if skipped > 0 {
		zap.L().Warn("knowledge: skipped documents embedded by another embedder",
			zap.String("key", key),
			zap.Int("skipped", skipped),
		)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].ID < docs[j].ID
	})
	if len(docs) > topN {
		docs = docs[:topN]
	}
	return docs, nil
}

func (s *SQLiteIndex) Count(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE key = ? AND embedder = ?`, key, s.embedder.Name()).Scan(&n)
	return n, eris.Wrapf(err, "knowledge: count %s", key)
}

func (s *SQLiteIndex) Exists(ctx context.Context, key, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE key = ? AND id = ? AND embedder = ?`, key, id, s.embedder.Name()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "knowledge: exists %s", id)
	}
	return true, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
