package retriever

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const indexFile = "index.sqlite"

type chunk struct {
	text   string
	vector []float32
	norm   float64
}

func newChunk(text string, vector []float32) chunk {
	return chunk{text: text, vector: vector, norm: norm(vector)}
}

// indexStore persists chunks and their vectors in a single SQLite file.
type indexStore struct {
	path string
}

func newIndexStore(dir string) (*indexStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	return &indexStore{path: filepath.Join(dir, indexFile)}, nil
}

func (s *indexStore) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS index_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL
		)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare index schema: %w", err)
		}
	}
	return db, nil
}

// load returns the stored chunks when they were embedded with model.
// A missing, empty, or foreign-model index yields no chunks.
func (s *indexStore) load(ctx context.Context, model string) ([]chunk, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var stored string
	err = db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = 'model'`).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}
	if stored != model {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, `SELECT content, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	defer rows.Close()

	var out []chunk
	for rows.Next() {
		var (
			text string
			blob []byte
		)
		if err := rows.Scan(&text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, newChunk(text, vec))
	}
	return out, rows.Err()
}

// save replaces the stored index in one transaction.
func (s *indexStore) save(ctx context.Context, model string, chunks []chunk) error {
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin index write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, content, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, i, c.text, encodeVector(c.vector)); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_meta (key, value) VALUES ('model', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, model); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}
	return tx.Commit()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector blob of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
