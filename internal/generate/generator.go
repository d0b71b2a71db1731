// Package generate calls the external generative capability used for
// hypothesis generation and final answers.
package generate

import (
	"context"
	"errors"
)

// ErrProvider is returned when the generative endpoint keeps failing after
// the retry budget is spent. For hypothesis generation the caller degrades to
// the query embedding; for final answers the failure is surfaced.
var ErrProvider = errors.New("generation provider error")

// Generator produces text from a system context and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}
