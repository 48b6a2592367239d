// Package llm wraps the external generative text capability behind a small
// boundary interface. Every response is untrusted input; schema validation
// happens in the callers, transport failures are mapped to the pipeline
// error taxonomy here.
package llm

import "context"

// TextCompleter is the injectable generative capability consumed by the
// classifier adapter and the draft generator.
type TextCompleter interface {
	// Classify runs a structured-output completion; the returned string is
	// expected (but not guaranteed) to be a JSON object.
	Classify(ctx context.Context, prompt string) (string, error)
	// Generate runs a free-text completion.
	Generate(ctx context.Context, prompt string) (string, error)
}
