package jobsync

import (
	"context"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/usecase/ingest"
)

// Source yields the raw postings of one crawl pass.
type Source interface {
	Collect(ctx context.Context) ([]domain.Posting, error)
}

// Store is the authoritative store's internal API.
type Store interface {
	SubmitBatch(ctx context.Context, postings []domain.Posting) ([]domain.Posting, error)
	ListJobs(ctx context.Context) ([]domain.Posting, error)
}

// Ingester projects accepted postings into the vector index.
type Ingester interface {
	Ingest(ctx context.Context, postings []domain.Posting) (ingest.Report, error)
}

// Ledger tracks accepted ids that are not indexed yet.
type Ledger interface {
	Add(ctx context.Context, ids []domain.JobID) error
	Remove(ctx context.Context, ids []domain.JobID) error
	List(ctx context.Context) ([]domain.JobID, error)
	Count(ctx context.Context) (int, error)
}
