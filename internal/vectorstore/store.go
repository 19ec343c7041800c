package vectorstore

import (
	"errors"

	"cryptokb/internal/domain"
)

// ErrWrite wraps any failure to embed or durably persist a batch. A batch
// that fails is never partially visible.
var ErrWrite = errors.New("vector store write failed")

// ErrRead wraps any failure to query or scan the store.
var ErrRead = errors.New("vector store read failed")

// Store is a durable, queryable collection of (content, metadata, embedding)
// records. Implementations own the embedding call for inserts and queries so
// callers only ever deal in text.
//
// A Store handle is explicitly constructed and explicitly owned; two handles
// open on the same persistence location are undefined behavior.
type Store interface {
	// Insert embeds each text and appends one record per text. The batch is
	// all-or-nothing: on error nothing from it is persisted.
	// len(texts) must equal len(metadatas).
	Insert(texts []string, metadatas []domain.Metadata) error

	// Query returns up to k nearest records by embedding distance, ascending.
	// An empty store yields an empty result, not an error.
	Query(text string, k int) ([]domain.Hit, error)

	// GetAll returns the id and metadata of every record. Used to derive the
	// existing-source index and the empty-store check.
	GetAll() ([]domain.Record, error)

	// Clear destroys and recreates the collection. After return the store is
	// empty and still usable.
	Clear() error

	// Close releases the underlying resources.
	Close() error
}
