package qdrant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptokb/internal/domain"
	"cryptokb/internal/embedding/local"
)

// fakeQdrant is just enough of the REST surface for the store: collection
// lifecycle, upsert, search, scroll.
type fakeQdrant struct {
	t          *testing.T
	mux        *http.ServeMux
	exists     bool
	upserts    int
	lastSearch map[string]any
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *httptest.Server) {
	f := &fakeQdrant{t: t, mux: http.NewServeMux()}
	f.mux.HandleFunc("/collections/kb", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			f.exists = true
			w.Write([]byte(`{"result": true}`))
		case http.MethodGet:
			if !f.exists {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(`{"result": {}}`))
		case http.MethodDelete:
			f.exists = false
			w.Write([]byte(`{"result": true}`))
		default:
			http.NotFound(w, r)
		}
	})
	f.mux.HandleFunc("/collections/kb/points", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.NotFound(w, r)
			return
		}
		assert.Equal(f.t, "true", r.URL.Query().Get("wait"))
		f.upserts++
		w.Write([]byte(`{"result": {}}`))
	})
	f.mux.HandleFunc("/collections/kb/points/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.lastSearch))
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"score": 0.98, "payload": map[string]any{
					"content":  "stored article",
					"metadata": map[string]any{"source": "https://example.com/a", "type": "url"},
				}},
			},
		})
	})
	f.mux.HandleFunc("/collections/kb/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points": []map[string]any{
					{"id": "p1", "payload": map[string]any{
						"metadata": map[string]any{"source": "https://example.com/a", "type": "url"},
					}},
				},
				"next_page_offset": nil,
			},
		})
	})
	srv := httptest.NewServer(f.mux)
	f.t.Cleanup(srv.Close)
	return f, srv
}

func newTestStore(srv *httptest.Server) *Store {
	return New(Config{URL: srv.URL, Collection: "kb"}, local.New(16))
}

func TestQueryAndGetAll_MissingCollection(t *testing.T) {
	_, srv := newFakeQdrant(t)
	s := newTestStore(srv)

	hits, err := s.Query("anything", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	records, err := s.GetAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestInsert_CreatesCollectionOnce(t *testing.T) {
	f, srv := newFakeQdrant(t)
	s := newTestStore(srv)

	meta := domain.Metadata{Source: "https://example.com/a", Type: domain.SourceURL}
	require.NoError(t, s.Insert([]string{"first"}, []domain.Metadata{meta}))
	require.NoError(t, s.Insert([]string{"second"}, []domain.Metadata{meta}))
	assert.True(t, f.exists)
	assert.Equal(t, 2, f.upserts)
}

func TestQuery_ConvertsScoreToDistance(t *testing.T) {
	f, srv := newFakeQdrant(t)
	f.exists = true
	s := newTestStore(srv)

	hits, err := s.Query("stored article", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.02, hits[0].Distance, 1e-9)
	assert.Equal(t, "stored article", hits[0].Content)
	assert.Equal(t, domain.SourceURL, hits[0].Metadata.Type)
	assert.EqualValues(t, 1, f.lastSearch["limit"])
}

func TestGetAll(t *testing.T) {
	f, srv := newFakeQdrant(t)
	f.exists = true
	s := newTestStore(srv)

	records, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "p1", records[0].ID)
	assert.Equal(t, "https://example.com/a", records[0].Metadata.Source)
}

func TestClear_DropsAndRecreatesLazily(t *testing.T) {
	f, srv := newFakeQdrant(t)
	s := newTestStore(srv)

	meta := domain.Metadata{Source: "x", Type: domain.SourceText}
	require.NoError(t, s.Insert([]string{"doc"}, []domain.Metadata{meta}))
	require.True(t, f.exists)

	require.NoError(t, s.Clear())
	assert.False(t, f.exists)

	hits, err := s.Query("doc", 1)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, s.Insert([]string{"doc"}, []domain.Metadata{meta}))
	assert.True(t, f.exists)
}
