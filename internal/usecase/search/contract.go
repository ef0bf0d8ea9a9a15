package search

import (
	"context"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

// Index defines the read side of the vector index.
type Index interface {
	SearchKNN(ctx context.Context, vector []float32, k int) ([]domain.ScoredDocument, error)
	SearchKeyword(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
