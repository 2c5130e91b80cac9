package rag

import (
	"context"

	"medassist/internal/models"
	"medassist/internal/retrieval"
	"medassist/internal/synthesis"
)

// RAG composes retrieval and synthesis into the question-answer operation.
type RAG struct {
	engine *retrieval.Engine
	synth  *synthesis.Synthesizer
}

func NewRAG(engine *retrieval.Engine, synth *synthesis.Synthesizer) *RAG {
	return &RAG{engine: engine, synth: synth}
}

// Answer retrieves context for the question and synthesizes a grounded
// answer. The empty-retrieval branch flows through as the fixed fallback.
func (r *RAG) Answer(ctx context.Context, question string) (*models.QueryResponse, error) {
	matches, err := r.engine.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	return r.synth.Synthesize(ctx, question, matches)
}
