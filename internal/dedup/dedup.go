// Package dedup decides whether candidate content is already represented in
// the store. Two tiers: a cheap identity check on the declared source string,
// and a similarity check against the nearest stored neighbor. The identity
// check never touches the embedding provider.
package dedup

import (
	"log/slog"
	"sort"

	"cryptokb/internal/domain"
	"cryptokb/internal/vectorstore"
)

// DefaultThreshold is the similarity at or above which content counts as
// duplicate. The boundary is inclusive.
const DefaultThreshold = 0.95

type Checker struct {
	store     vectorstore.Store
	threshold float64
	log       *slog.Logger
}

func New(store vectorstore.Store, threshold float64, logger *slog.Logger) *Checker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{store: store, threshold: threshold, log: logger}
}

// Threshold reports the configured similarity cutoff.
func (c *Checker) Threshold() float64 { return c.threshold }

// IsDuplicate reports whether content is semantically already present.
// Similarity is 1 - distance of the single nearest neighbor, valid because
// every store backend uses a distance bounded by [0,2]. Any failure along the
// way means "not a duplicate": ingestion prefers over-inclusion to silently
// dropping data.
func (c *Checker) IsDuplicate(content string) bool {
	records, err := c.store.GetAll()
	if err != nil {
		c.log.Error("duplicate check: listing records failed", "error", err)
		return false
	}
	if len(records) == 0 {
		return false
	}
	hits, err := c.store.Query(content, 1)
	if err != nil {
		c.log.Error("duplicate check: nearest-neighbor query failed", "error", err)
		return false
	}
	if len(hits) == 0 {
		return false
	}
	similarity := 1 - hits[0].Distance
	if similarity >= c.threshold {
		c.log.Info("content is duplicate", "similarity", similarity, "threshold", c.threshold, "nearest_source", hits[0].Metadata.Source)
		return true
	}
	c.log.Debug("content is new", "similarity", similarity, "threshold", c.threshold)
	return false
}

// ExistingSources returns the set of source identifiers already stored for
// the given type, derived by scanning record metadata. Errors yield an empty
// set so ingestion degrades to tier-2 checking instead of failing.
func (c *Checker) ExistingSources(t domain.SourceType) map[string]struct{} {
	records, err := c.store.GetAll()
	if err != nil {
		c.log.Error("listing existing sources failed", "type", t, "error", err)
		return map[string]struct{}{}
	}
	sources := make(map[string]struct{})
	for _, r := range records {
		if r.Metadata.Type == t && r.Metadata.Source != "" {
			sources[r.Metadata.Source] = struct{}{}
		}
	}
	return sources
}

// Partition splits candidates into those absent from existing and those
// already present, preserving input order within each part.
func Partition(candidates []string, existing map[string]struct{}) (fresh, skipped []string) {
	for _, c := range candidates {
		if _, ok := existing[c]; ok {
			skipped = append(skipped, c)
		} else {
			fresh = append(fresh, c)
		}
	}
	return fresh, skipped
}

// SortedSources flattens a source set for stable log output.
func SortedSources(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
