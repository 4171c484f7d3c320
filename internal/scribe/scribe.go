// Package scribe provides the text-generation collaborator used to draft
// communiques, acknowledgment decrees, and guide answers.
package scribe

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by generators that are switched off.
var ErrUnavailable = errors.New("scribe: generator unavailable")

// Generator turns a prompt into text. Implementations make a single attempt;
// callers decide what to do with failures and empty output.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Static always answers with the same text.
type Static string

// Generate implements Generator.
func (s Static) Generate(context.Context, string) (string, error) {
	return string(s), nil
}

// Disabled always fails, so every caller falls back to its fixed text.
type Disabled struct{}

// Generate implements Generator.
func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrUnavailable
}
