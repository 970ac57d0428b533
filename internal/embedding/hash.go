// Package embedding provides a deterministic local embedder for offline
// setups and tests. Vectors come from feature hashing, not a learned model,
// so semantic quality is limited but results are stable across runs.
package embedding

import (
	"context"
	"hash/fnv"

	"github.com/kailas-cloud/cinedex/internal/domain"
)

// HashEmbedder maps text to a fixed-dimension vector by hashing unigram and
// bigram tokens into buckets. Implements domain.Embedder.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hashing embedder with the given dimensionality.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Dimensions returns the embedding dimensionality.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// Embed implements domain.Embedder. Never fails and ignores ctx cancellation:
// hashing a query is cheaper than checking for it.
func (e *HashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	tokens := domain.Tokenize(text)

	vec := make([]float32, e.dimensions)
	for _, tok := range tokens {
		e.accumulate(vec, tok)
	}
	for i := 1; i < len(tokens); i++ {
		e.accumulate(vec, tokens[i-1]+" "+tokens[i])
	}

	domain.Normalize(vec)

	return domain.EmbeddingResult{Embedding: vec}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *HashEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		embeddings[i] = res.Embedding
	}

	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

// accumulate hashes the feature into a bucket. The lowest hash bit picks the
// sign so that unrelated features cancel instead of piling up positive mass.
func (e *HashEmbedder) accumulate(vec []float32, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dimensions)) //nolint:gosec // dimensions is small and positive
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}
