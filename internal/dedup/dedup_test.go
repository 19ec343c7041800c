package dedup

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptokb/internal/domain"
	"cryptokb/internal/vectorstore"
)

// fakeStore scripts the store responses so tests control distances exactly.
type fakeStore struct {
	records    []domain.Record
	hits       []domain.Hit
	getAllErr  error
	queryErr   error
	queryCalls int
}

func (f *fakeStore) Insert(texts []string, metadatas []domain.Metadata) error { return nil }

func (f *fakeStore) Query(text string, k int) ([]domain.Hit, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if k > len(f.hits) {
		k = len(f.hits)
	}
	return f.hits[:k], nil
}

func (f *fakeStore) GetAll() ([]domain.Record, error) {
	if f.getAllErr != nil {
		return nil, f.getAllErr
	}
	return f.records, nil
}

func (f *fakeStore) Clear() error { return nil }
func (f *fakeStore) Close() error { return nil }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(source string, t domain.SourceType) domain.Record {
	return domain.Record{ID: source, Metadata: domain.Metadata{Source: source, Type: t}}
}

func TestIsDuplicate_EmptyStore(t *testing.T) {
	store := &fakeStore{}
	c := New(store, 0.95, discard())

	assert.False(t, c.IsDuplicate("anything"))
	assert.Zero(t, store.queryCalls, "empty store must not be queried")
}

func TestIsDuplicate_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     bool
	}{
		{"well above threshold", 0.01, true},
		{"exactly at threshold", 0.05, true},
		{"just below threshold", 0.05 + 1e-9, false},
		{"clearly new", 0.40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				records: []domain.Record{record("a.pdf", domain.SourcePDF)},
				hits:    []domain.Hit{{Content: "stored", Distance: tt.distance}},
			}
			c := New(store, 0.95, discard())
			assert.Equal(t, tt.want, c.IsDuplicate("candidate"))
		})
	}
}

func TestIsDuplicate_NoNeighbor(t *testing.T) {
	store := &fakeStore{records: []domain.Record{record("a.pdf", domain.SourcePDF)}}
	c := New(store, 0.95, discard())
	assert.False(t, c.IsDuplicate("candidate"))
}

func TestIsDuplicate_ErrorsMeanNotDuplicate(t *testing.T) {
	t.Run("getAll fails", func(t *testing.T) {
		store := &fakeStore{getAllErr: vectorstore.ErrRead}
		assert.False(t, New(store, 0.95, discard()).IsDuplicate("x"))
	})
	t.Run("query fails", func(t *testing.T) {
		store := &fakeStore{
			records:  []domain.Record{record("a.pdf", domain.SourcePDF)},
			queryErr: vectorstore.ErrRead,
		}
		assert.False(t, New(store, 0.95, discard()).IsDuplicate("x"))
	})
}

func TestDefaultThresholdApplied(t *testing.T) {
	c := New(&fakeStore{}, 0, discard())
	require.Equal(t, DefaultThreshold, c.Threshold())
}

func TestExistingSources_FiltersByType(t *testing.T) {
	store := &fakeStore{records: []domain.Record{
		record("a.pdf", domain.SourcePDF),
		record("b.pdf", domain.SourcePDF),
		record("https://example.com/1", domain.SourceURL),
		record("text_1", domain.SourceText),
	}}
	c := New(store, 0.95, discard())

	pdfs := c.ExistingSources(domain.SourcePDF)
	assert.Len(t, pdfs, 2)
	assert.Contains(t, pdfs, "a.pdf")
	assert.Contains(t, pdfs, "b.pdf")

	urls := c.ExistingSources(domain.SourceURL)
	assert.Len(t, urls, 1)
	assert.Contains(t, urls, "https://example.com/1")
}

func TestExistingSources_ErrorYieldsEmptySet(t *testing.T) {
	store := &fakeStore{getAllErr: vectorstore.ErrRead}
	c := New(store, 0.95, discard())
	assert.Empty(t, c.ExistingSources(domain.SourcePDF))
}

func TestPartition(t *testing.T) {
	existing := map[string]struct{}{"b": {}, "d": {}}
	fresh, skipped := Partition([]string{"a", "b", "c", "d"}, existing)
	assert.Equal(t, []string{"a", "c"}, fresh)
	assert.Equal(t, []string{"b", "d"}, skipped)
}

func TestPartition_NoExisting(t *testing.T) {
	fresh, skipped := Partition([]string{"a", "b"}, map[string]struct{}{})
	assert.Equal(t, []string{"a", "b"}, fresh)
	assert.Empty(t, skipped)
}
