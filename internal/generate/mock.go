package generate

import "context"

// MockGenerator returns canned text, or a fixed error, for tests.
type MockGenerator struct {
	Response string
	Err      error
	// Calls records every prompt received, in order.
	Calls []string
}

// Generate returns the configured response or error.
func (g *MockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	g.Calls = append(g.Calls, prompt)
	if g.Err != nil {
		return "", g.Err
	}
	return g.Response, nil
}
