package hyde

import (
	"context"

	"go.uber.org/zap"

	"github.com/verticelabs/acervo/internal/embedding"
	"github.com/verticelabs/acervo/internal/generate"
	"github.com/verticelabs/acervo/internal/models"
)

// Result is the outcome of one expansion. It lives for a single retrieval
// pass and is never persisted.
type Result struct {
	OriginalQuery       string
	Hypothesis          string
	QueryEmbedding      []float32
	HypothesisEmbedding []float32
	Analysis            Analysis
	Confidence          float64
}

// SearchVector returns the embedding to use downstream. Below the confidence
// threshold, or when no hypothesis embedding exists, it is always the original
// query's embedding: a weak or failed hypothesis must never degrade retrieval
// relative to the unexpanded query.
func (r *Result) SearchVector(threshold float64) []float32 {
	if r.Confidence < threshold || r.HypothesisEmbedding == nil {
		return r.QueryEmbedding
	}
	return r.HypothesisEmbedding
}

// Expander generates hypothetical answers and their embeddings.
type Expander struct {
	generator generate.Generator
	embedder  embedding.Provider
	logger    *zap.Logger
}

// NewExpander creates an expander with the given dependencies.
func NewExpander(generator generate.Generator, embedder embedding.Provider, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{generator: generator, embedder: embedder, logger: logger}
}

// Expand analyzes the query, generates a hypothetical answer, and embeds both
// the query and the hypothesis. Generation and hypothesis-embedding failures
// are non-fatal: the result carries confidence 0 so SearchVector falls back to
// the query embedding. Only failure to embed the original query is an error,
// since without it there is nothing left to search with.
func (e *Expander) Expand(ctx context.Context, query string, history []models.ChatMessage) (*Result, error) {
	analysis := Analyze(query, history)

	queryEmb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	result := &Result{
		OriginalQuery:  query,
		QueryEmbedding: queryEmb,
		Analysis:       analysis,
	}

	hypothesis, err := e.generator.Generate(ctx, systemContext, hypothesisPrompt(query, analysis))
	if err != nil {
		e.logger.Warn("hypothesis generation failed, falling back to query embedding",
			zap.String("query", query), zap.Error(err))
		return result, nil
	}
	result.Hypothesis = hypothesis

	hypEmb, err := e.embedder.Embed(ctx, hypothesis)
	if err != nil {
		e.logger.Warn("hypothesis embedding failed, falling back to query embedding",
			zap.String("query", query), zap.Error(err))
		return result, nil
	}
	result.HypothesisEmbedding = hypEmb
	result.Confidence = Confidence(analysis, hypothesis)
	return result, nil
}
