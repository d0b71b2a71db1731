package generate

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

// HTTPGenerator calls an OpenAI-compatible chat completions endpoint with a
// bounded wait: one retry on transient failure, then the error surfaces.
type HTTPGenerator struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
	limiter     *rate.Limiter
}

// HTTPGeneratorConfig configures an HTTPGenerator.
type HTTPGeneratorConfig struct {
	Endpoint          string
	APIKey            string
	Model             string
	Temperature       float64
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewHTTPGenerator creates a generator for the given endpoint and model.
func NewHTTPGenerator(cfg HTTPGeneratorConfig) (*HTTPGenerator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("generation endpoint is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.5
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 5
	}
	return &HTTPGenerator{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the system context and prompt and returns the generated text.
func (g *HTTPGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	var out string
	op := func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		text, err := g.request(ctx, system, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return out, nil
}

func (g *HTTPGenerator) request(ctx context.Context, system, prompt string) (string, error) {
	messages := []chatMessage{}
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", backoff.Permanent(fmt.Errorf("generation request failed: status %d: %s", resp.StatusCode, msg))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	if len(parsed.Choices) == 0 {
		return "", backoff.Permanent(fmt.Errorf("generation response has no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}
