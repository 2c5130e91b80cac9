package retrieval

import (
	"context"
	"fmt"

	"medassist/internal/embedding"
	"medassist/internal/index"
	"medassist/internal/models"
)

// Engine answers "which passages are relevant to this question".
type Engine struct {
	gateway *embedding.Gateway
	store   index.Store
	topK    int
}

func NewEngine(gateway *embedding.Gateway, store index.Store, topK int) *Engine {
	return &Engine{gateway: gateway, store: store, topK: topK}
}

// Retrieve embeds the question and returns the topK nearest passages, best
// first. A nil slice with a nil error means nothing relevant exists — a
// normal outcome for an empty index, not an error. No score threshold is
// applied; every returned match is passed on.
func (e *Engine) Retrieve(ctx context.Context, question string) ([]models.Match, error) {
	vector, err := e.gateway.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := e.store.Query(ctx, vector, e.topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches, nil
}
