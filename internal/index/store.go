package index

import (
	"context"
	"errors"

	"medassist/internal/models"
)

var (
	// ErrConfig means the index name, credentials or schema are missing or
	// wrong. Detected at construction so the service refuses to start.
	ErrConfig = errors.New("vector index misconfigured")

	// ErrUnavailable wraps connectivity or auth failures talking to the index.
	ErrUnavailable = errors.New("vector index unavailable")
)

// Record is one (id, vector, metadata) triple stored in the index. Metadata
// always carries the chunk text because vector stores don't return source
// text on their own.
type Record struct {
	ID        string
	Embedding []float32
	Content   string
	Source    string
	Page      int
	Index     int
}

// Store wraps the external vector index.
//
// Upsert is idempotent: re-upserting an id replaces its vector and metadata
// entirely. Query returns up to topK matches by descending similarity; ties
// keep the index's native order. An empty result is not an error.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, embedding []float32, topK int) ([]models.Match, error)
}
