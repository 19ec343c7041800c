// Package kb is the knowledge base facade: a dedup-checked write path and a
// failure-tolerant read path over an explicitly owned vector store handle.
package kb

import (
	"fmt"
	"log/slog"

	"cryptokb/internal/dedup"
	"cryptokb/internal/domain"
	"cryptokb/internal/vectorstore"
)

// DefaultSearchK is how many results Search returns when the caller does not
// say otherwise.
const DefaultSearchK = 3

type KnowledgeBase struct {
	store   vectorstore.Store
	checker *dedup.Checker
	log     *slog.Logger
}

// New builds a knowledge base over the given store. The store handle is
// owned by the caller and passed in; there is no process-global instance.
func New(store vectorstore.Store, threshold float64, logger *slog.Logger) *KnowledgeBase {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeBase{
		store:   store,
		checker: dedup.New(store, threshold, logger),
		log:     logger,
	}
}

// Add inserts one document unless its content is already represented.
// The duplicate decision and the insert are coupled: the insert happens
// immediately after its own dedup check, so a later document in the same run
// can be judged against this one. Returns whether the document was stored.
func (k *KnowledgeBase) Add(content string, meta domain.Metadata) (bool, error) {
	if k.checker.IsDuplicate(content) {
		k.log.Info("skipping duplicate content", "source", meta.Source, "type", meta.Type)
		return false, nil
	}
	if err := k.store.Insert([]string{content}, []domain.Metadata{meta}); err != nil {
		return false, fmt.Errorf("add %s: %w", meta.Source, err)
	}
	k.log.Info("added content", "source", meta.Source, "type", meta.Type, "chars", len(content))
	return true, nil
}

// AddTexts runs Add over a batch, skipping items that fail or duplicate.
// It returns how many were actually stored.
func (k *KnowledgeBase) AddTexts(texts []string, metadatas []domain.Metadata) int {
	added := 0
	for i, text := range texts {
		var meta domain.Metadata
		if i < len(metadatas) {
			meta = metadatas[i]
		}
		ok, err := k.Add(text, meta)
		if err != nil {
			k.log.Error("failed to add content", "source", meta.Source, "error", err)
			continue
		}
		if ok {
			added++
		}
	}
	return added
}

// Search returns up to k snippets ranked by ascending distance. Failures are
// logged and surface as an empty result, never as an error: a broken read
// path should degrade the answer, not crash the consumer.
func (k *KnowledgeBase) Search(query string, n int) []domain.SearchResult {
	if n <= 0 {
		n = DefaultSearchK
	}
	hits, err := k.store.Query(query, n)
	if err != nil {
		k.log.Error("search failed", "query", query, "error", err)
		return nil
	}
	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = domain.SearchResult{Content: h.Content, Score: h.Distance}
	}
	return results
}

// ExistingSources exposes the tier-1 identity index for the ingestion layer.
func (k *KnowledgeBase) ExistingSources(t domain.SourceType) map[string]struct{} {
	return k.checker.ExistingSources(t)
}

// IsDuplicate exposes the tier-2 similarity check.
func (k *KnowledgeBase) IsDuplicate(content string) bool {
	return k.checker.IsDuplicate(content)
}

// Clear empties the store and verifies it really is empty afterwards.
func (k *KnowledgeBase) Clear() error {
	if err := k.store.Clear(); err != nil {
		return err
	}
	records, err := k.store.GetAll()
	if err != nil {
		return fmt.Errorf("verify after clear: %w", err)
	}
	if len(records) != 0 {
		return fmt.Errorf("store still holds %d records after clear", len(records))
	}
	k.log.Info("knowledge base cleared")
	return nil
}

// Count returns the number of stored records.
func (k *KnowledgeBase) Count() (int, error) {
	records, err := k.store.GetAll()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
