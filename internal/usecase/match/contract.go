package match

import (
	"context"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

// Embedder vectorizes query or description text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
