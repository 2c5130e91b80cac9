package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
rag:
  chunk_size: 400
  chunk_overlap: 40
embed_llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
inference_llm:
  key: "test-key"
  model: "llama-3.1-8b-instant"
index:
  provider: "chromem"
  in_memory: true
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.RAG.ChunkSize)
	assert.Equal(t, 40, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)
	assert.Equal(t, 768, cfg.EmbedLLM.Dimensions)
	assert.Equal(t, "search_document: ", cfg.EmbedLLM.PassagePrefix)
	assert.Equal(t, "search_query: ", cfg.EmbedLLM.QueryPrefix)
	assert.Equal(t, "documents", cfg.Index.Collection)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsOverlapNotSmallerThanSize(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)
	cfg.RAG.ChunkOverlap = cfg.RAG.ChunkSize

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestValidateRejectsMissingInferenceKey(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)
	cfg.InferLLM.Key = ""

	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownInferenceProvider(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)
	cfg.InferLLM.Provider = "groq"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inference_llm")
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestValidateOllamaInferenceRequiresBaseURL(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)
	cfg.InferLLM.Provider = "ollama"
	cfg.InferLLM.BaseURL = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestValidateRejectsUnknownIndexProvider(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)
	cfg.Index.Provider = "pinecone"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestValidateRequiresPostgresURL(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)
	cfg.Index.Provider = "postgres"
	cfg.Index.DatabaseURL = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}
