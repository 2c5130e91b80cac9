package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"medassist/internal/chunker"
	"medassist/internal/config"
	"medassist/internal/embedding"
	"medassist/internal/index"
	"medassist/internal/models"
	"medassist/internal/parser"
)

// Result reports the outcome of ingesting one document.
type Result struct {
	File   string `json:"file"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

// Pipeline turns uploaded documents into index entries:
// extract pages -> chunk -> embed as passages -> batch upsert.
type Pipeline struct {
	gateway *embedding.Gateway
	store   index.Store
	cfg     config.RAGConfig
}

func NewPipeline(gateway *embedding.Gateway, store index.Store, cfg config.RAGConfig) *Pipeline {
	return &Pipeline{gateway: gateway, store: store, cfg: cfg}
}

// IngestAll processes each document independently; one failing document does
// not block its siblings. The returned slice has one entry per input path.
func (p *Pipeline) IngestAll(ctx context.Context, paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		n, err := p.IngestFile(ctx, path)
		res := Result{File: path, Chunks: n}
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("file", path).Msg("ingestion failed")
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// IngestFile ingests a single document. Embedding and upsert cover the whole
// document in one batch each, so a failure leaves the index without any
// partial state for this ingestion.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	pages, err := parser.ExtractPages(path)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(pages) == 0 {
		return 0, chunker.ErrEmptyDocument
	}

	source := parser.SourceID(path)
	var chunks []models.Chunk
	for _, page := range pages {
		pageChunks, err := chunker.Split(page.Text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
		if err != nil {
			return 0, fmt.Errorf("chunking %s page %d: %w", path, page.Number, err)
		}
		for _, chunk := range pageChunks {
			chunk.Source = source
			chunk.Page = page.Number
			// sequence index is global across the document, not per page
			chunk.Index = len(chunks)
			chunks = append(chunks, chunk)
		}
	}

	records := make([]index.Record, len(chunks))
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		records[i] = index.Record{
			ID:      fmt.Sprintf("%s-%d", chunk.Source, chunk.Index),
			Content: chunk.Content,
			Source:  chunk.Source,
			Page:    chunk.Page,
			Index:   chunk.Index,
		}
		texts[i] = chunk.Content
	}

	log.Ctx(ctx).Debug().Str("source", source).Int("chunks", len(records)).Msg("embedding chunks")
	vectors, err := p.gateway.Embed(ctx, texts, embedding.RolePassage)
	if err != nil {
		return 0, fmt.Errorf("embedding %s: %w", path, err)
	}
	for i := range records {
		records[i].Embedding = vectors[i]
	}

	if err := p.store.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upserting %s: %w", path, err)
	}
	log.Ctx(ctx).Info().Str("source", source).Int("chunks", len(records)).Msg("document indexed")
	return len(records), nil
}
