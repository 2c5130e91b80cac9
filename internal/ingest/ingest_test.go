package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medassist/internal/chunker"
	"medassist/internal/config"
	"medassist/internal/embedding"
	"medassist/internal/index"
	"medassist/internal/models"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type fakeStore struct {
	upserts [][]index.Record
	err     error
}

func (f *fakeStore) Upsert(_ context.Context, records []index.Record) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeStore) Query(context.Context, []float32, int) ([]models.Match, error) {
	return nil, nil
}

func newTestPipeline(store index.Store, embErr error) *Pipeline {
	gateway := embedding.NewGatewayWith(&fakeEmbedder{err: embErr}, &config.LLMConfig{
		Dimensions:    3,
		PassagePrefix: "search_document: ",
		QueryPrefix:   "search_query: ",
	})
	return NewPipeline(gateway, store, config.RAGConfig{ChunkSize: 40, ChunkOverlap: 10, TopK: 3})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestFileBuildsSequentialIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.txt", strings.Repeat("patient has mild hypertension. ", 5))
	store := &fakeStore{}

	n, err := newTestPipeline(store, nil).IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Greater(t, n, 1)
	require.Len(t, store.upserts, 1, "one batch upsert per document")

	records := store.upserts[0]
	require.Len(t, records, n)
	for i, rec := range records {
		assert.Equal(t, "report-"+strconv.Itoa(i), rec.ID)
		assert.Equal(t, "report", rec.Source)
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, 1, rec.Page)
		assert.NotEmpty(t, rec.Content)
		assert.Len(t, rec.Embedding, 3)
	}
}

func TestIngestFileEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blank.txt", "   \n\t ")
	store := &fakeStore{}

	_, err := newTestPipeline(store, nil).IngestFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chunker.ErrEmptyDocument))
	assert.Empty(t, store.upserts)
}

func TestIngestFileNoUpsertOnEmbedFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.txt", "some perfectly fine document content")
	store := &fakeStore{}

	_, err := newTestPipeline(store, errors.New("model offline")).IngestFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, embedding.ErrService))
	assert.Empty(t, store.upserts, "a failed embedding must not reach the index")
}

func TestIngestAllIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "readable content that chunks fine")
	bad := writeFile(t, dir, "bad.xyz", "unsupported format")
	store := &fakeStore{}

	results := newTestPipeline(store, nil).IngestAll(context.Background(), []string{bad, good})
	require.Len(t, results, 2)

	assert.NotEmpty(t, results[0].Error, "unsupported format should be reported")
	assert.Empty(t, results[1].Error, "a failing sibling must not block ingestion")
	assert.Equal(t, good, results[1].File)
	require.Len(t, store.upserts, 1)
}

func TestReingestSameNameReusesIDs(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{}
	pipeline := newTestPipeline(store, nil)

	path := writeFile(t, dir, "report.txt", "original wording of the report")
	_, err := pipeline.IngestFile(context.Background(), path)
	require.NoError(t, err)

	path = writeFile(t, dir, "report.txt", "revised wording of the report")
	_, err = pipeline.IngestFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, store.upserts, 2)
	assert.Equal(t, store.upserts[0][0].ID, store.upserts[1][0].ID,
		"same document name must map to the same ids so upsert overwrites")
}
