package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// HTTPProvider calls an OpenAI-compatible embeddings endpoint. Transient
// failures get a single retry with exponential backoff; requests are rate
// limited client-side so bursts of chunk embedding do not trip the provider.
type HTTPProvider struct {
	endpoint   string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	limiter    *rate.Limiter
}

// HTTPProviderConfig configures an HTTPProvider.
type HTTPProviderConfig struct {
	Endpoint          string
	APIKey            string
	Model             string
	Dimensions        int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewHTTPProvider creates a provider for the given endpoint and model.
func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 10
	}
	return &HTTPProvider{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns the embedding for a single text.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request. The provider returns float64
// components; they are narrowed to float32 to match the persisted format.
func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	op := func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		vecs, err := p.request(ctx, texts)
		if err != nil {
			return err
		}
		out = vecs
		return nil
	}
	// One retry on transient failure, then the error surfaces to the caller.
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *HTTPProvider) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("embedding request failed: status %d: %s", resp.StatusCode, msg))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, backoff.Permanent(fmt.Errorf("embedding response has %d vectors for %d inputs", len(parsed.Data), len(texts)))
	}

	vecs := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vecs) {
			return nil, backoff.Permanent(fmt.Errorf("embedding response index %d out of range", item.Index))
		}
		if len(item.Embedding) != p.dimensions {
			return nil, backoff.Permanent(fmt.Errorf("embedding has %d dimensions, expected %d", len(item.Embedding), p.dimensions))
		}
		vec := make([]float32, p.dimensions)
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vecs[item.Index] = vec
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension.
func (p *HTTPProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op for HTTPProvider.
func (p *HTTPProvider) Close() error {
	return nil
}
