package domain

import "time"

// SourceType tags where a document came from.
type SourceType string

const (
	SourcePDF  SourceType = "pdf"
	SourceURL  SourceType = "url"
	SourceText SourceType = "text"
)

// Metadata describes the origin of an ingested document. Source plus Type
// is the identity of a logical document; content changes under the same
// source are not a new document.
type Metadata struct {
	Source    string     `json:"source"`
	Type      SourceType `json:"type"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
	Pages     int        `json:"pages,omitempty"`
}

// Document is a unit of ingested knowledge.
type Document struct {
	Content  string
	Metadata Metadata
}

// Record identifies a persisted entry without its content or embedding.
type Record struct {
	ID       string
	Metadata Metadata
}

// Hit is a nearest-neighbor match. Distance is non-negative and bounded,
// smaller means more similar.
type Hit struct {
	Content  string
	Metadata Metadata
	Distance float64
}

// SearchResult is what the retrieval surface hands to consumers. Score is
// the raw distance of the match; callers decide how to rank or cut.
type SearchResult struct {
	Content string
	Score   float64
}
