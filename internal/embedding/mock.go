package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
)

// MockProvider is a deterministic embedder for tests and offline development.
// The same text always gets the same unit-length vector.
type MockProvider struct {
	dimensions int
}

// NewMockProvider returns a provider producing deterministic embeddings.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockProvider{dimensions: dimensions}
}

// Embed returns a deterministic embedding derived from the text hash.
func (p *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, p.dimensions)
	for i := range vec {
		vec[i] = float32(math.Sin(float64(seed)*float64(i+1))*0.1 + 0.01)
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op for MockProvider.
func (p *MockProvider) Close() error {
	return nil
}

// FixtureProvider returns canned vectors per exact text, for tests that need
// to control which embedding reaches the store.
type FixtureProvider struct {
	dimensions int
	vectors    map[string][]float32
}

// NewFixtureProvider creates a provider with a fixed text→vector table.
func NewFixtureProvider(dimensions int, vectors map[string][]float32) *FixtureProvider {
	return &FixtureProvider{dimensions: dimensions, vectors: vectors}
}

// Embed returns the canned vector for text.
func (p *FixtureProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, ok := p.vectors[text]
	if !ok {
		return nil, fmt.Errorf("%w: no fixture for %q", ErrProviderUnavailable, text)
	}
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (p *FixtureProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (p *FixtureProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op for FixtureProvider.
func (p *FixtureProvider) Close() error {
	return nil
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	if sum == 0 {
		return
	}
	norm := 1.0 / math.Sqrt(sum)
	for i := range vec {
		vec[i] *= float32(norm)
	}
}
