// Package qdrant backs the vector store with a remote Qdrant collection over
// its REST API. It exists for deployments that outgrow the local sqlite
// store; the on-disk layout is then Qdrant's problem, not ours.
package qdrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"cryptokb/internal/domain"
	"cryptokb/internal/embedding"
	"cryptokb/internal/vectorstore"
)

// Store is a minimal REST client to Qdrant. The collection uses cosine
// distance; Qdrant reports cosine *similarity* as the score, so results are
// converted to distance at this boundary.
type Store struct {
	mu         sync.Mutex
	url        string
	apiKey     string
	collection string
	embedder   embedding.Embedder
	client     *http.Client
	created    bool
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func New(cfg Config, embedder embedding.Embedder) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		embedder:   embedder,
		client:     &http.Client{Timeout: timeout},
	}
}

// ensureCollection creates the collection on first use. The dimension is
// only known once the embedder has produced a vector, so creation is lazy.
func (s *Store) ensureCollection(dimension int) error {
	if s.created {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.putJSON(fmt.Sprintf("%s/collections/%s", s.url, s.collection), body); err != nil {
		return err
	}
	s.created = true
	return nil
}

func (s *Store) Insert(texts []string, metadatas []domain.Metadata) error {
	if len(texts) != len(metadatas) {
		return fmt.Errorf("%w: %d texts for %d metadatas", vectorstore.ErrWrite, len(texts), len(metadatas))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	points := make([]map[string]any, len(texts))
	for i, text := range texts {
		vec, err := s.embedder.Embed(text)
		if err != nil {
			return fmt.Errorf("%w: embedding item %d: %v", vectorstore.ErrWrite, i, err)
		}
		vectorstore.Normalize(vec)
		if err := s.ensureCollection(len(vec)); err != nil {
			return fmt.Errorf("%w: create collection: %v", vectorstore.ErrWrite, err)
		}
		points[i] = map[string]any{
			"id":     uuid.NewString(),
			"vector": vec,
			"payload": map[string]any{
				"content":  text,
				"metadata": metadatas[i],
			},
		}
	}
	body := map[string]any{"points": points}
	// wait=true makes the upsert durable before we report success.
	if err := s.putJSON(fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body); err != nil {
		return fmt.Errorf("%w: upsert: %v", vectorstore.ErrWrite, err)
	}
	return nil
}

func (s *Store) Query(text string, k int) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", vectorstore.ErrRead)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created && !s.collectionExists() {
		return nil, nil
	}
	vec, err := s.embedder.Embed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", vectorstore.ErrRead, err)
	}
	vectorstore.Normalize(vec)

	req := map[string]any{
		"vector":       vec,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, fmt.Errorf("%w: search: %v", vectorstore.ErrRead, err)
	}
	hits := make([]domain.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, domain.Hit{
			Content:  r.Payload.Content,
			Metadata: r.Payload.Metadata,
			Distance: 1 - r.Score,
		})
	}
	return hits, nil
}

type payload struct {
	Content  string          `json:"content"`
	Metadata domain.Metadata `json:"metadata"`
}

func (s *Store) GetAll() ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created && !s.collectionExists() {
		return nil, nil
	}
	var out []domain.Record
	var offset any
	for {
		req := map[string]any{
			"limit":        256,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					ID      any     `json:"id"`
					Payload payload `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection), req, &resp); err != nil {
			return nil, fmt.Errorf("%w: scroll: %v", vectorstore.ErrRead, err)
		}
		for _, p := range resp.Result.Points {
			out = append(out, domain.Record{ID: fmt.Sprint(p.ID), Metadata: p.Payload.Metadata})
		}
		if resp.Result.NextPageOffset == nil {
			return out, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if err != nil {
		return err
	}
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("drop collection: %s", resp.Status)
	}
	// Recreated lazily on the next insert, when the dimension is known again.
	s.created = false
	return nil
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) collectionExists() bool {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if err != nil {
		return false
	}
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		s.created = true
		return true
	}
	return false
}

func (s *Store) auth(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Store) putJSON(url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ vectorstore.Store = (*Store)(nil)
