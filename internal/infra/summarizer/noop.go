package summarizer

import (
	"context"
)

// NoOp is a summarizer that returns the original text without calling any
// provider. Useful for development runs without API keys.
type NoOp struct {
	name string
}

// NewNoOp creates a NoOp summarizer reporting the given provider name.
func NewNoOp(name string) *NoOp {
	return &NoOp{name: name}
}

// Name implements the provider identity.
func (n *NoOp) Name() string {
	return n.name
}

// Summarize returns the original text truncated to the first 500 bytes.
func (n *NoOp) Summarize(_ context.Context, text string) (string, error) {
	const maxLength = 500
	if len(text) <= maxLength {
		return text, nil
	}
	return text[:maxLength] + "...", nil
}
