// Package embedding defines the shared embed(text, padToTokens, pad?) contract
// implemented by the local ONNX and remote HTTP embedding provider variants.
package embedding

import (
	"context"
	"errors"
)

// Common errors surfaced by either provider variant.
var (
	ErrProviderClosed        = errors.New("embedding provider is closed")
	ErrUnsupportedOutput     = errors.New("onnx session output type is not float32, float16, or uint8")
	ErrEmbeddingFailed       = errors.New("provider returned an empty embedding vector")
	ErrContextLengthExceeded = errors.New("remote provider rejected the request: maximum context length exceeded")
)

// Provider is the capability both variants implement. Callers never branch
// on which concrete variant they hold.
type Provider interface {
	// Embed returns a D-dimensional vector for text. When pad is true, the
	// input is tokenized to exactly padToTokens tokens before inference;
	// when false, the natural (unpadded) token sequence is used.
	Embed(ctx context.Context, text string, padToTokens int, pad bool) ([]float32, error)

	// Dimension returns D, the fixed output vector length.
	Dimension() int

	// Close releases resources held by the provider (ONNX session,
	// tokenizer, HTTP transport).
	Close() error
}
