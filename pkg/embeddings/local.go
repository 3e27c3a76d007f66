package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// LocalClient generates deterministic embeddings from a text hash.
// It is intended for standalone deployments and tests where no external
// embedding provider is configured; vectors are stable across restarts.
type LocalClient struct {
	dimensions int
}

// NewLocalClient creates a LocalClient with the given dimensionality.
// A non-positive value falls back to EmbeddingDimension.
func NewLocalClient(dimensions int) *LocalClient {
	if dimensions <= 0 {
		dimensions = EmbeddingDimension
	}
	return &LocalClient{dimensions: dimensions}
}

// EmbedQuery creates a deterministic unit vector from the text hash.
func (c *LocalClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(query))
	seed := h.Sum64()

	embedding := make([]float32, c.dimensions)
	for i := range embedding {
		// LCG over the hash seed
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// EmbedDocuments embeds each document independently.
func (c *LocalClient) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	out := make([][]float32, len(documents))
	for i, doc := range documents {
		vec, err := c.EmbedQuery(ctx, doc)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding size.
func (c *LocalClient) Dimensions() int {
	return c.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
