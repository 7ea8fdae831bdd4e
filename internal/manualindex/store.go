package manualindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS corpora (
    fingerprint TEXT PRIMARY KEY,
    built_at TEXT NOT NULL,
    chunk_count INTEGER NOT NULL,
    embedding_dim INTEGER NOT NULL,
    model TEXT
);

CREATE TABLE IF NOT EXISTS manual_chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    fingerprint TEXT NOT NULL REFERENCES corpora(fingerprint) ON DELETE CASCADE,
    doc_order INTEGER NOT NULL,
    chunk_order INTEGER NOT NULL,
    source_document TEXT NOT NULL,
    content TEXT NOT NULL,
    embedding BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_manual_chunks_fingerprint
    ON manual_chunks(fingerprint);
`

// Store persists manual chunks and their embeddings in SQLite so a corpus is
// embedded once and shared read-only across analysis runs.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore initializes or connects to the manual index database.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply index schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location backing the store.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// hasCorpus reports whether a corpus with the given fingerprint is already persisted.
func (s *Store) hasCorpus(ctx context.Context, fingerprint string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM corpora WHERE fingerprint = ?`, fingerprint).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check corpus: %w", err)
	}
	return count > 0, nil
}

// latestFingerprint returns the most recently built corpus fingerprint, or
// empty when the store holds no corpus.
func (s *Store) latestFingerprint(ctx context.Context) (string, error) {
	var fingerprint string
	err := s.db.QueryRowContext(ctx, `SELECT fingerprint FROM corpora ORDER BY built_at DESC LIMIT 1`).Scan(&fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest corpus: %w", err)
	}
	return fingerprint, nil
}

// insertCorpus writes a full corpus and its chunks in one transaction.
func (s *Store) insertCorpus(ctx context.Context, fingerprint, model string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return errors.New("no chunks to persist")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin corpus tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	builtAt := time.Now().UTC().Format(time.RFC3339Nano)
	dim := len(chunks[0].Embedding)
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO corpora (fingerprint, built_at, chunk_count, embedding_dim, model) VALUES (?, ?, ?, ?, ?)`,
		fingerprint, builtAt, len(chunks), dim, model,
	); err != nil {
		return fmt.Errorf("insert corpus: %w", err)
	}

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO manual_chunks (fingerprint, doc_order, chunk_order, source_document, content, embedding)
         VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		chunk := &chunks[i]
		res, err := stmt.ExecContext(
			ctx,
			fingerprint, chunk.DocOrder, chunk.ChunkOrder, chunk.Source, chunk.Text,
			encodeEmbedding(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("chunk insert id: %w", err)
		}
		chunk.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit corpus: %w", err)
	}
	return nil
}

// loadChunks reads all chunks for a corpus in deterministic order.
func (s *Store) loadChunks(ctx context.Context, fingerprint string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, doc_order, chunk_order, source_document, content, embedding
         FROM manual_chunks WHERE fingerprint = ?
         ORDER BY doc_order, chunk_order`,
		fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocOrder, &chunk.ChunkOrder, &chunk.Source, &chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Embedding = decodeEmbedding(blob)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
