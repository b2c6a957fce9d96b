package domain

import "context"

// Generator produces completion text given a system instruction and a prompt.
// Calls may run for seconds; cancellation is the caller's ctx, no internal retries.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (GenerationResult, error)
}

// GenerationResult carries the completion text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
