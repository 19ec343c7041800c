// Package sqlite implements the persistent vector store. Records live in a
// single database file under a directory the store owns; embeddings are
// compared by brute-force cosine scan, which is fine at knowledge-base scale
// (hundreds of documents, not millions of chunks).
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cryptokb/internal/domain"
	"cryptokb/internal/embedding"
	"cryptokb/internal/vectorstore"
)

const dbFile = "knowledge.db"

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id        TEXT PRIMARY KEY,
	content   TEXT NOT NULL,
	metadata  TEXT NOT NULL,
	embedding BLOB NOT NULL
);`

// Store is a directory-rooted persistent vector store.
type Store struct {
	mu       sync.Mutex
	dir      string
	db       *sql.DB
	embedder embedding.Embedder
	log      *slog.Logger
}

// Open opens (or creates) the store rooted at dir. Opening an empty or
// missing directory is not an error; it yields an empty store.
func Open(dir string, embedder embedding.Embedder, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{dir: dir, embedder: embedder, log: logger}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir %s: %w", s.dir, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(s.dir, dbFile))
	if err != nil {
		return fmt.Errorf("open store at %s: %w", s.dir, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("init store schema: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Insert(texts []string, metadatas []domain.Metadata) error {
	if len(texts) != len(metadatas) {
		return fmt.Errorf("%w: %d texts for %d metadatas", vectorstore.ErrWrite, len(texts), len(metadatas))
	}
	// Embed before opening the transaction so an embedding failure leaves
	// no trace on disk.
	vecs := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := s.embedder.Embed(text)
		if err != nil {
			return fmt.Errorf("%w: embedding item %d: %v", vectorstore.ErrWrite, i, err)
		}
		vectorstore.Normalize(vec)
		vecs[i] = vec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", vectorstore.ErrWrite, err)
	}
	for i := range texts {
		meta, err := json.Marshal(metadatas[i])
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: encode metadata: %v", vectorstore.ErrWrite, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO records (id, content, metadata, embedding) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), texts[i], string(meta), encodeVector(vecs[i]),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: insert: %v", vectorstore.ErrWrite, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", vectorstore.ErrWrite, err)
	}
	s.log.Debug("inserted records", "count", len(texts))
	return nil
}

func (s *Store) Query(text string, k int) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", vectorstore.ErrRead)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT content, metadata, embedding FROM records`)
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", vectorstore.ErrRead, err)
	}
	defer rows.Close()

	var qvec []float64
	var hits []domain.Hit
	for rows.Next() {
		if qvec == nil {
			// Embed lazily: an empty store answers without calling the provider.
			qvec, err = s.embedder.Embed(text)
			if err != nil {
				return nil, fmt.Errorf("%w: embedding query: %v", vectorstore.ErrRead, err)
			}
			vectorstore.Normalize(qvec)
		}
		var content, metaJSON string
		var blob []byte
		if err := rows.Scan(&content, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", vectorstore.ErrRead, err)
		}
		var meta domain.Metadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("%w: decode metadata: %v", vectorstore.ErrRead, err)
		}
		vec := decodeVector(blob)
		hits = append(hits, domain.Hit{Content: content, Metadata: meta, Distance: vectorstore.CosineDistance(qvec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", vectorstore.ErrRead, err)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (s *Store) GetAll() ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, metadata FROM records`)
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", vectorstore.ErrRead, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var id, metaJSON string
		if err := rows.Scan(&id, &metaJSON); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", vectorstore.ErrRead, err)
		}
		var meta domain.Metadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("%w: decode metadata: %v", vectorstore.ErrRead, err)
		}
		out = append(out, domain.Record{ID: id, Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", vectorstore.ErrRead, err)
	}
	return out, nil
}

// Clear tears the collection down and recreates it empty: close the handle,
// delete the directory, reopen. No sleeps, no reliance on finalizers.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close before clear: %w", err)
	}
	if err := os.RemoveAll(s.dir); err != nil {
		// Another handle on the same directory can race here; that usage is
		// unsupported, so log and surface rather than crash.
		s.log.Error("failed to remove store directory", "dir", s.dir, "error", err)
		return fmt.Errorf("remove store dir %s: %w", s.dir, err)
	}
	if err := s.open(); err != nil {
		return err
	}
	s.log.Info("store cleared", "dir", s.dir)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func encodeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float64 {
	vec := make([]float64, len(buf)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

var _ vectorstore.Store = (*Store)(nil)
