package index

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"medassist/internal/config"
	"medassist/internal/models"
)

const chromemCompress = false

// ChromemStore keeps vectors in an embedded chromem-go database, persistent
// on disk or purely in memory. chromem replaces documents by ID on add,
// which gives us the upsert semantics re-ingestion relies on.
type ChromemStore struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	encryptionKey string
	filePath      string
}

// NewChromemStore opens (or creates) the database and collection up front so
// a bad path or collection surfaces at startup, not on first request.
func NewChromemStore(cfg *config.IndexConfig) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, chromemCompress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem at %s: %v", ErrConfig, cfg.Path, err)
		}
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %s: %v", ErrConfig, cfg.Collection, err)
	}

	return &ChromemStore{
		db:            db,
		collection:    collection,
		dbPath:        cfg.Path,
		encryptionKey: cfg.EncryptionKey,
		filePath:      cfg.Path + "/" + cfg.Collection + ".chromem",
	}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Embedding: rec.Embedding,
			Metadata: map[string]string{
				"text":        rec.Content,
				"source":      rec.Source,
				"page":        strconv.Itoa(rec.Page),
				"chunk_index": strconv.Itoa(rec.Index),
			},
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: adding documents: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, topK int) ([]models.Match, error) {
	// chromem rejects nResults larger than the collection
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       topK,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: similarity query: %v", ErrUnavailable, err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, res := range results {
		page, _ := strconv.Atoi(res.Metadata["page"])
		matches = append(matches, models.Match{
			ID:      res.ID,
			Content: res.Metadata["text"],
			Source:  res.Metadata["source"],
			Page:    page,
			Score:   res.Similarity,
		})
	}
	return matches, nil
}

// Export writes an encrypted snapshot of the collection next to the database.
// Only meaningful for the in-memory configuration.
func (s *ChromemStore) Export(ctx context.Context) error {
	if s.encryptionKey == "" {
		return fmt.Errorf("%w: encryption key is required for export", ErrConfig)
	}
	log.Debug().Str("file", s.filePath).Str("collection", s.collection.Name).Msg("exporting collection")
	if err := s.db.ExportToFile(s.filePath, chromemCompress, s.encryptionKey, s.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

// Import restores a previously exported snapshot and re-resolves the
// collection handle, since the import replaces the collection in the DB.
func (s *ChromemStore) Import(ctx context.Context) error {
	if s.encryptionKey == "" {
		return fmt.Errorf("%w: encryption key is required for import", ErrConfig)
	}
	if err := s.db.ImportFromFile(s.filePath, s.encryptionKey, s.collection.Name); err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	collection, err := s.db.GetOrCreateCollection(s.collection.Name, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: collection %s after import: %v", ErrConfig, s.collection.Name, err)
	}
	s.collection = collection
	return nil
}
