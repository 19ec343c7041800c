package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"cryptokb/internal/domain"
	"cryptokb/internal/embedding"
	"cryptokb/internal/vectorstore"
)

type record struct {
	id      string
	content string
	meta    domain.Metadata
	vec     []float64
}

// Store keeps records in memory with brute-force cosine search. It backs
// tests and ephemeral runs; durability comes from the sqlite store.
type Store struct {
	mu       sync.RWMutex
	embedder embedding.Embedder
	records  []record
}

func New(embedder embedding.Embedder) *Store {
	return &Store{embedder: embedder}
}

func (s *Store) Insert(texts []string, metadatas []domain.Metadata) error {
	if len(texts) != len(metadatas) {
		return fmt.Errorf("%w: %d texts for %d metadatas", vectorstore.ErrWrite, len(texts), len(metadatas))
	}
	// Embed everything before touching state so a failed batch stays invisible.
	staged := make([]record, len(texts))
	for i, text := range texts {
		vec, err := s.embedder.Embed(text)
		if err != nil {
			return fmt.Errorf("%w: embedding item %d: %v", vectorstore.ErrWrite, i, err)
		}
		vectorstore.Normalize(vec)
		staged[i] = record{id: uuid.NewString(), content: text, meta: metadatas[i], vec: vec}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, staged...)
	return nil
}

func (s *Store) Query(text string, k int) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", vectorstore.ErrRead)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	qvec, err := s.embedder.Embed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", vectorstore.ErrRead, err)
	}
	vectorstore.Normalize(qvec)
	hits := make([]domain.Hit, len(s.records))
	for i, r := range s.records {
		hits[i] = domain.Hit{Content: r.content, Metadata: r.meta, Distance: vectorstore.CosineDistance(qvec, r.vec)}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (s *Store) GetAll() ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, len(s.records))
	for i, r := range s.records {
		out[i] = domain.Record{ID: r.id, Metadata: r.meta}
	}
	return out, nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

func (s *Store) Close() error { return nil }

var _ vectorstore.Store = (*Store)(nil)
