// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations must
// satisfy, enabling text-to-vector conversion for similarity search. Encoding
// callers treat any failure here as ErrUnavailable and fall back to storing
// records without a vector index.
package embedder

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding provider could not produce a vector.
// Callers should degrade to non-vector storage rather than drop the record.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider defines the interface for embedding providers.
//
// All embedding implementations (OpenAI, mock, etc.) must implement this
// interface.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// More efficient than calling Embed repeatedly as requests are batched.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - texts: Slice of input texts to embed
	//
	// Returns a slice of embedding vectors and any error.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of vectors produced by this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
