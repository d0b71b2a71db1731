// Package retrieval orchestrates the answer pipeline: cache, optional
// hypothesis expansion, permission-filtered similarity search, context
// assembly, and final generation.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/verticelabs/acervo/internal/cache"
	"github.com/verticelabs/acervo/internal/embedding"
	"github.com/verticelabs/acervo/internal/generate"
	"github.com/verticelabs/acervo/internal/hyde"
	"github.com/verticelabs/acervo/internal/models"
	"github.com/verticelabs/acervo/internal/store"
)

// DefaultTopK is the number of chunks handed to the generator.
const DefaultTopK = 5

const answerSystem = `You answer questions about institutional council documents
(regulations, meeting minutes, agendas, resolutions, ordinances). Answer only
from the numbered excerpts provided, cite them as [n], and say plainly when
the excerpts contain no evidence for an answer. Never invent content.`

// Config holds the orchestrator's tunables.
type Config struct {
	TopK          int
	HyDEThreshold float64
	EnrichQueries bool
}

// Engine coordinates the retrieval pass. It is the only component that calls
// the external answer-generation capability.
type Engine struct {
	store     store.Store
	cache     *cache.Manager
	embedder  embedding.Provider
	generator generate.Generator
	expander  *hyde.Expander
	cfg       Config
	logger    *zap.Logger
}

// NewEngine creates the orchestrator. All collaborators are passed in
// explicitly; expander may be nil to disable hypothesis expansion entirely.
func NewEngine(
	st store.Store,
	cm *cache.Manager,
	embedder embedding.Provider,
	generator generate.Generator,
	expander *hyde.Expander,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     st,
		cache:     cm,
		embedder:  embedder,
		generator: generator,
		expander:  expander,
		cfg:       cfg,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one question. Steps run strictly in
// order; the cheapest path (cache) short-circuits everything else. Only a
// final-generation failure is surfaced to the caller, every other failure is
// absorbed into fallback behavior.
func (e *Engine) Answer(ctx context.Context, req models.AskRequest) (*models.Answer, error) {
	perm := models.Permission{UserID: req.UserID, Role: req.Role}

	if entry, scope, err := e.cache.Lookup(ctx, req.Query, req.UserID); err != nil {
		e.logger.Warn("cache lookup failed, proceeding to retrieval", zap.Error(err))
	} else if entry != nil {
		e.logger.Debug("cache hit", zap.String("scope", scope), zap.String("query", req.Query))
		return &models.Answer{Text: entry.Answer, Sources: entry.Sources, Provenance: scope}, nil
	}

	searchQuery := req.Query
	if e.cfg.EnrichQueries {
		searchQuery = enrichQuery(req.Query, req.History)
		if searchQuery != req.Query {
			e.logger.Debug("query enriched",
				zap.String("original", req.Query), zap.String("enriched", searchQuery))
		}
	}

	vec, err := e.searchVector(ctx, searchQuery, req)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := e.store.Search(ctx, vec, e.cfg.TopK, perm)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	sources := make([]models.Source, 0, len(hits))
	for _, hit := range hits {
		sources = append(sources, models.Source{
			DocumentID: hit.Document.ID,
			Title:      hit.Document.Title,
			Type:       hit.Document.Type,
			IsGlobal:   hit.Document.IsGlobal,
			Similarity: hit.Similarity,
		})
	}

	text, err := e.generator.Generate(ctx, answerSystem, buildPrompt(req.Query, hits))
	if err != nil {
		// No local fabrication: generation failure is the one error the
		// caller sees.
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	e.storeAnswer(ctx, req, text, sources)

	return &models.Answer{Text: text, Sources: sources, Provenance: models.ProvenanceFresh}, nil
}

// searchVector produces the embedding used for the similarity search: the
// expansion result when HyDE is requested (which itself falls back to the
// query embedding below the confidence threshold), the plain query embedding
// otherwise.
func (e *Engine) searchVector(ctx context.Context, searchQuery string, req models.AskRequest) ([]float32, error) {
	if req.UseHyDE && e.expander != nil {
		res, err := e.expander.Expand(ctx, searchQuery, req.History)
		if err != nil {
			return nil, err
		}
		return res.SearchVector(e.cfg.HyDEThreshold), nil
	}
	return e.embedder.Embed(ctx, searchQuery)
}

// storeAnswer writes the fresh answer back to the cache. Promotion to the
// global scope happens only when every cited source is globally visible; one
// private source keeps the entry in the user scope, so the existence of an
// answer derived from private material never leaks into the shared scope.
// The write runs on a detached context: a caller that disconnected mid-flight
// still leaves a valid entry behind.
func (e *Engine) storeAnswer(ctx context.Context, req models.AskRequest, text string, sources []models.Source) {
	if cache.IsNegative(text) {
		e.logger.Debug("negative answer, bypassing cache", zap.String("query", req.Query))
		return
	}
	promote := true
	for _, src := range sources {
		if !src.IsGlobal {
			promote = false
			break
		}
	}
	if err := e.cache.Store(context.WithoutCancel(ctx), req.Query, req.UserID, text, sources, promote); err != nil {
		e.logger.Warn("cache store failed", zap.Error(err))
	}
}

// buildPrompt assembles the ranked context handed to the generator. Each
// excerpt carries its document title, type, and similarity as a percentage,
// matching the citation format shown to users.
func buildPrompt(query string, hits []store.SearchHit) string {
	var b strings.Builder
	if len(hits) == 0 {
		b.WriteString("No relevant excerpts were found in the corpus.\n\n")
	} else {
		b.WriteString("Excerpts from the document corpus, most relevant first:\n\n")
		for i, hit := range hits {
			fmt.Fprintf(&b, "[%d] %s (%s, %.1f%%)\n%s\n\n",
				i+1, hit.Document.Title, hit.Document.Type, hit.Similarity*100, hit.Chunk.Content)
		}
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}
