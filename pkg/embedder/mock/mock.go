// Package mock provides a deterministic embedder for tests and local runs.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates deterministic embeddings from a text hash. Identical
// inputs always produce identical vectors, which keeps retrieval tests
// hermetic without a network dependency.
type Embedder struct {
	dimensions int

	// failing, when true, makes every call fail. Used to exercise
	// degraded-encode paths.
	failing bool
	failErr error
}

// New creates a mock embedder with the given dimension (default 64).
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &Embedder{dimensions: dimensions}
}

// NewFailing creates a mock embedder whose calls always return err.
func NewFailing(err error) *Embedder {
	return &Embedder{dimensions: 64, failing: true, failErr: err}
}

// Embed creates a deterministic unit vector from the text's FNV hash, using
// an LCG to spread the hash across dimensions.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if m.failing {
		return nil, m.failErr
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float64, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float64(int64(seed)) / float64(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// EmbedBatch embeds each text independently.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if m.failing {
		return nil, m.failErr
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

// Close is a no-op.
func (m *Embedder) Close() error {
	return nil
}

// normalize converts an embedding to a unit vector.
func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	normalized := make([]float64, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
