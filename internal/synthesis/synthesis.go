package synthesis

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"medassist/internal/config"
	"medassist/internal/models"
)

// ErrSynthesis wraps language model failures and unusable responses. Fatal
// for the single question; retries are the caller's business.
var ErrSynthesis = errors.New("answer synthesis failed")

var thinkTagRe = regexp.MustCompile(models.ThinkTag)

// Synthesizer turns retrieved passages plus the question into a grounded
// answer with provenance.
type Synthesizer struct {
	llm llms.Model
}

// NewSynthesizer builds the language model client once so bad credentials
// surface at startup instead of on the first question.
func NewSynthesizer(cfg *config.LLMConfig) (*Synthesizer, error) {
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama inference model: %w", err)
		}
		return NewSynthesizerWith(llm), nil
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
			return nil, fmt.Errorf("initializing inference model: %w", err)
		}
		return NewSynthesizerWith(llm), nil
	}
}

// NewSynthesizerWith wraps an existing model; tests use it to substitute fakes.
func NewSynthesizerWith(llm llms.Model) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize produces the final answer. With no matches it returns the fixed
// fallback and an empty sources list without calling the model. Otherwise the
// match texts become the context block, in rank order, and sources mirror the
// matches one to one (duplicates preserved).
func (s *Synthesizer) Synthesize(ctx context.Context, question string, matches []models.Match) (*models.QueryResponse, error) {
	if len(matches) == 0 {
		return &models.QueryResponse{
			Answer:  models.FallbackAnswer,
			Sources: []string{},
		}, nil
	}

	texts := make([]string, len(matches))
	sources := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Content
		sources[i] = m.Source
	}

	prompt := fmt.Sprintf(models.AnswerPromptTemplate, strings.Join(texts, models.ContextSeparator), question)
	msgContent := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	res, err := s.llm.GenerateContent(ctx, msgContent, llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	answer, err := extractAnswer(res)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().Int("matches", len(matches)).Msg("synthesized answer")
	return &models.QueryResponse{Answer: answer, Sources: sources}, nil
}

// extractAnswer normalizes the model response to plain text. Reasoning
// models wrap their scratch work in <think> tags; those are stripped.
func extractAnswer(res *llms.ContentResponse) (string, error) {
	if res == nil || len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", ErrSynthesis)
	}
	answer := strings.TrimSpace(thinkTagRe.ReplaceAllString(res.Choices[0].Content, ""))
	if answer == "" {
		return "", fmt.Errorf("%w: model returned empty content", ErrSynthesis)
	}
	return answer, nil
}
