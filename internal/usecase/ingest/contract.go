package ingest

import (
	"context"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/batch"
)

// Index is the write side of the vector index.
type Index interface {
	Upsert(ctx context.Context, docs []domain.IndexedDocument) ([]batch.Result, error)
}

// Embedder vectorizes document content.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
