// Package embedding converts text to fixed-length vectors through an external
// provider, with client-side rate limiting, retry, and memoization.
package embedding

import (
	"context"
	"errors"
)

// ErrProviderUnavailable is returned when the embedding endpoint cannot be
// reached or keeps failing after the retry budget is spent.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// ErrRateLimited is returned when the provider rejects the request with a
// rate-limit response.
var ErrRateLimited = errors.New("embedding provider rate limited")

// Provider produces vector embeddings for text. Dimensions is fixed per
// deployment and must match the corpus store.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
