// Package sqlite provides a vector store persisted in a local SQLite
// database. Similarity search is brute force: vectors are loaded per
// namespace and scored in process, which is plenty for the corpus sizes
// this service handles.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/db"
	"github.com/shelfagent/shelfagent/pkg/vectorstore"
)

var _ vectorstore.Store = (*Store)(nil)

// Store persists embedded documents in SQLite.
type Store struct {
	db *sqlx.DB
}

var migrations = []db.Migration{
	{
		Version:     20260115120000,
		Description: "create vectors table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS vectors (
					namespace TEXT NOT NULL,
					id TEXT NOT NULL,
					text TEXT NOT NULL,
					source TEXT NOT NULL,
					embedding BLOB NOT NULL,
					PRIMARY KEY (namespace, id)
				)
			`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_vectors_namespace ON vectors(namespace)`)
			return err
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec(`DROP TABLE IF EXISTS vectors`)
			return err
		},
	},
}

// Open opens (or creates) a sqlite-backed store at dbPath and runs its
// migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	sqlDB, err := db.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	runner := db.NewMigrationRunner(sqlDB)
	if err := runner.Run(ctx, migrations); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "failed to run vector store migrations")
	}

	return &Store{db: sqlDB}, nil
}

type vectorRow struct {
	Namespace string `db:"namespace"`
	ID        string `db:"id"`
	Text      string `db:"text"`
	Source    string `db:"source"`
	Embedding []byte `db:"embedding"`
}

// Upsert inserts or replaces documents in the namespace.
func (s *Store) Upsert(ctx context.Context, namespace string, docs []vectorstore.Document) error {
	if namespace == "" {
		return errors.New("namespace cannot be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, d := range docs {
		if d.ID == "" {
			return errors.New("document id cannot be empty")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO vectors (namespace, id, text, source, embedding)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(namespace, id) DO UPDATE SET
				text = excluded.text,
				source = excluded.source,
				embedding = excluded.embedding
		`, namespace, d.ID, d.Text, d.Source, encodeVector(d.Vector))
		if err != nil {
			return errors.Wrapf(err, "failed to upsert document %s", d.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit upsert")
}

// Search scores every vector in the namespace and returns the topK best.
func (s *Store) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 3
	}

	var rows []vectorRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT namespace, id, text, source, embedding FROM vectors WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load namespace vectors")
	}

	matches := make([]vectorstore.Match, 0, len(rows))
	for _, row := range rows {
		embedded, err := decodeVector(row.Embedding)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt embedding for document %s", row.ID)
		}
		score, err := cosine(vector, embedded)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s", row.ID)
		}
		matches = append(matches, vectorstore.Match{
			Document: vectorstore.Document{
				ID:     row.ID,
				Text:   row.Text,
				Source: row.Source,
				Vector: embedded,
			},
			Score: score,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// ListNamespaces returns per-namespace vector counts, sorted by name.
func (s *Store) ListNamespaces(ctx context.Context) ([]vectorstore.NamespaceStat, error) {
	var stats []vectorstore.NamespaceStat
	err := s.db.SelectContext(ctx, &stats, `
		SELECT namespace AS name, COUNT(*) AS vectors
		FROM vectors GROUP BY namespace ORDER BY namespace
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list namespaces")
	}
	return stats, nil
}

// DeleteNamespace removes a namespace and all its vectors.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE namespace = ?`, namespace)
	return errors.Wrapf(err, "failed to delete namespace %s", namespace)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, errors.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}
