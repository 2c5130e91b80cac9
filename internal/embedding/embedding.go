package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medassist/internal/config"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrService wraps transport or model failures from the embedding backend.
	// A failed batch aborts the whole operation; partial vectors are never used.
	ErrService = errors.New("embedding service error")

	// ErrDimensionMismatch means the backend returned a vector whose length
	// differs from the configured index dimensionality. Mixing dimensions
	// silently breaks similarity ranking, so this fails the operation.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Role selects the instruction prefix applied before embedding. Passage and
// query vectors only live in a comparable space when both sides used the
// matching prefix for the same model.
type Role string

const (
	RolePassage Role = "passage"
	RoleQuery   Role = "query"
)

const batchSize = 32

// Gateway converts texts into fixed-dimension vectors via a langchaingo
// embedder, applying the role prefix the model expects.
type Gateway struct {
	embedder      embeddings.Embedder
	passagePrefix string
	queryPrefix   string
	dimensions    int
}

// NewGateway builds a gateway around the configured backend.
func NewGateway(cfg *config.LLMConfig) (*Gateway, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return NewGatewayWith(embedder, cfg), nil
}

// NewGatewayWith wraps an existing embedder; tests use it to substitute fakes.
func NewGatewayWith(embedder embeddings.Embedder, cfg *config.LLMConfig) *Gateway {
	return &Gateway{
		embedder:      embedder,
		passagePrefix: cfg.PassagePrefix,
		queryPrefix:   cfg.QueryPrefix,
		dimensions:    cfg.Dimensions,
	}
}

func newEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	default:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("initializing openai embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	}
}

// Embed returns one vector per input text, in input order. The batch is
// sub-batched internally for throughput; any backend failure aborts the call.
func (g *Gateway) Embed(ctx context.Context, texts []string, role Role) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = g.prefix(role) + t
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(prefixed); start += batchSize {
		end := start + batchSize
		if end > len(prefixed) {
			end = len(prefixed)
		}
		batch, err := g.embedder.EmbedDocuments(ctx, prefixed[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrService, err)
		}
		vectors = append(vectors, batch...)
	}

	for i, v := range vectors {
		if g.dimensions > 0 && len(v) != g.dimensions {
			return nil, fmt.Errorf("%w: got %d, index expects %d (text %d)", ErrDimensionMismatch, len(v), g.dimensions, i)
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single question with the query prefix.
func (g *Gateway) EmbedQuery(ctx context.Context, question string) ([]float32, error) {
	vectors, err := g.Embed(ctx, []string{question}, RoleQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions reports the configured vector size.
func (g *Gateway) Dimensions() int {
	return g.dimensions
}

func (g *Gateway) prefix(role Role) string {
	if role == RoleQuery {
		return g.queryPrefix
	}
	return g.passagePrefix
}
