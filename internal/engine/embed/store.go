package embed

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists embeddings keyed by (model, text hash) in SQLite, so
// transcripts embedded once survive restarts.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the embedding database at path.
// Use ":memory:" for a throwaway store.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("embed store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("embed store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("embed store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DefaultStorePath is the on-disk location used when EMBED_CACHE_PATH is unset.
func DefaultStorePath() string {
	return filepath.Join(os.Getenv("HOME"), ".go_study", "embeddings.db")
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS embeddings (
		model      TEXT NOT NULL,
		text_hash  TEXT NOT NULL,
		dims       INTEGER NOT NULL,
		vector     BLOB NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (model, text_hash)
	)`)
	return err
}

// Get returns the stored vector for text under model.
func (s *Store) Get(ctx context.Context, model, text string) ([]float64, bool, error) {
	var dims int
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT dims, vector FROM embeddings WHERE model = ? AND text_hash = ?`,
		model, hashText(text)).Scan(&dims, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("embed store: get: %w", err)
	}
	vec, err := decodeVector(blob, dims)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Put stores vec for text under model, replacing any previous value.
func (s *Store) Put(ctx context.Context, model, text string, vec []float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (model, text_hash, dims, vector, created_at) VALUES (?, ?, ?, ?, ?)`,
		model, hashText(text), len(vec), encodeVector(vec), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("embed store: put: %w", err)
	}
	return nil
}

// Count returns the number of stored vectors.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// encodeVector packs float64s little-endian.
func encodeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeVector(blob []byte, dims int) ([]float64, error) {
	if len(blob) != 8*dims {
		return nil, fmt.Errorf("embed store: corrupt vector: %d bytes for %d dims", len(blob), dims)
	}
	vec := make([]float64, dims)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vec, nil
}
