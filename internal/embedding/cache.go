package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingProvider memoizes embeddings in front of another provider, keyed by
// the exact input text. Repeated and overlapping queries hit memory instead
// of the network.
type CachingProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

// NewCachingProvider wraps inner with an LRU cache of the given capacity.
func NewCachingProvider(inner Provider, capacity int) (*CachingProvider, error) {
	cache, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, err
	}
	return &CachingProvider{inner: inner, cache: cache}, nil
}

// Embed returns the cached embedding for text, or asks the inner provider.
func (p *CachingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := p.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Add(text, vec)
	return vec, nil
}

// EmbedBatch embeds texts, fetching only the misses from the inner provider.
func (p *CachingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := p.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := p.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		p.cache.Add(missing[j], vec)
	}
	return out, nil
}

// Dimensions returns the inner provider's dimension.
func (p *CachingProvider) Dimensions() int {
	return p.inner.Dimensions()
}

// Close closes the inner provider.
func (p *CachingProvider) Close() error {
	return p.inner.Close()
}
