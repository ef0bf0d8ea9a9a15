// Package hashing is a deterministic offline embedder based on feature hashing.
// It needs no network and produces stable vectors for local runs and tests.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/terms"
)

// DefaultDimensions is used when Config.Dimensions is not positive.
const DefaultDimensions = 256

// Embedder maps token frequencies into a fixed number of signed buckets.
type Embedder struct {
	dims int
}

// New creates a hashing embedder.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dims: dimensions}
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed implements domain.Embedder. Text without tokens yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("hashing embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	toks := terms.Tokenize(text)
	return domain.EmbeddingResult{
		Embedding:    e.vector(toks),
		PromptTokens: len(toks),
		TotalTokens:  len(toks),
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		res, err := e.Embed(ctx, t)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		out.Embeddings[i] = res.Embedding
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vector(toks []string) []float32 {
	acc := make([]float64, e.dims)
	for tok, n := range terms.Frequencies(toks) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		weight := 1 + math.Log(float64(n))
		if sum>>63 == 1 {
			weight = -weight
		}
		acc[sum%uint64(e.dims)] += weight
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dims)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

var _ domain.BatchEmbedder = (*Embedder)(nil)
