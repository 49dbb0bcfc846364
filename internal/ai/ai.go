// Package ai defines the two external capabilities the matching engine
// depends on: text generation and embedding generation.
package ai

import (
	"context"
	"errors"
)

// ResponseFormat hints the generator about the expected output shape.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text/plain"
	FormatJSON ResponseFormat = "application/json"
)

// ErrUnavailable is returned when a capability is not configured.
var ErrUnavailable = errors.New("ai capability unavailable")

// Generator produces text from a system and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string, format ResponseFormat) (string, error)
}

// Embedder maps text to a fixed-length vector. Every call returns a vector of
// length Dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Named is implemented by capabilities that can report their provider and model.
type Named interface {
	Provider() string
	Model() string
}
