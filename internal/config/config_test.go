package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "data/knowledge_base", cfg.Store.Path)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.Equal(t, 0.95, cfg.Dedup.Threshold)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: memory\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "data/knowledge_base", cfg.Store.Path)
	assert.Equal(t, 0.95, cfg.Dedup.Threshold)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t- broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := &AppConfig{
		Store: StoreConfig{Type: "qdrant", Path: "unused", Qdrant: &QdrantConfig{
			URL:        "http://localhost:6333",
			Collection: "kb",
		}},
		Embedder: EmbedderConfig{Type: "local", Dimension: 128},
		Dedup:    DedupConfig{Threshold: 0.9},
		Chat:     ChatConfig{Model: "gpt-4o-mini", Temperature: 0.2},
		Ingest:   IngestConfig{PDFDir: "pdfs", URLs: []string{"https://example.com/a"}},
		LogLevel: "debug",
	}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
