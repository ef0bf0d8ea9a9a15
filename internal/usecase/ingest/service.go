// Package ingest projects accepted postings into the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/batch"
)

// ErrSuperseded marks an earlier duplicate of a job id within one batch.
var ErrSuperseded = errors.New("superseded by a later posting with the same id")

// Report holds one result per input posting, in input order.
type Report struct {
	Results []batch.Result
	Written int
	Failed  int
}

// IndexedIDs returns ids that were written.
func (r Report) IndexedIDs() []domain.JobID {
	ok, _ := batch.Partition(r.Results)
	return ok
}

// FailedIDs returns ids that carry an id and failed. Superseded duplicates are excluded.
func (r Report) FailedIDs() []domain.JobID {
	var out []domain.JobID
	for _, res := range r.Results {
		if res.Status() == batch.StatusError && !res.ID().IsZero() {
			out = append(out, res.ID())
		}
	}
	return out
}

// Err wraps domain.ErrPartialBatchFailure when any posting with an id failed.
// It describes the report and is never a reason to fail the request.
func (r Report) Err() error {
	failed := r.FailedIDs()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d postings not indexed: %w", len(failed), len(r.Results), domain.ErrPartialBatchFailure)
}

// Service is the ingestion pipeline.
type Service struct {
	index  Index
	embed  Embedder
	logger *zap.Logger
}

// New creates an ingestion service.
func New(index Index, embed Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, embed: embed, logger: logger}
}

// Ingest embeds and upserts postings. Per-posting failures are reported, not returned.
// The error is non-nil when the whole batch failed: the embedding provider is down
// (domain.ErrEmbeddingProviderError) or the index is unreachable (domain.ErrIndexUnavailable).
func (s *Service) Ingest(ctx context.Context, postings []domain.Posting) (Report, error) {
	if len(postings) == 0 {
		return Report{}, nil
	}

	results := make([]batch.Result, len(postings))
	last := make(map[domain.JobID]int, len(postings))
	for i := range postings {
		if !postings[i].ID.IsZero() {
			last[postings[i].ID] = i
		}
	}

	docs := make([]domain.IndexedDocument, 0, len(postings))
	pos := make([]int, 0, len(postings))
	for i := range postings {
		p := postings[i].Normalized()
		doc, err := domain.NewIndexedDocument(p)
		switch {
		case err != nil:
			results[i] = batch.NewError(p.ID, err)
		case last[p.ID] != i:
			results[i] = batch.NewSkipped(p.ID, ErrSuperseded)
		default:
			docs = append(docs, doc)
			pos = append(pos, i)
		}
	}

	if len(docs) > 0 {
		if err := s.embedDocs(ctx, docs); err != nil {
			s.logger.Error("embedding ingest batch failed", zap.Int("documents", len(docs)), zap.Error(err))
			for _, i := range pos {
				results[i] = batch.NewError(postings[i].ID, err)
			}
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				err = fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
			}
			return summarize(results), fmt.Errorf("embed %d documents: %w", len(docs), err)
		}

		written, err := s.index.Upsert(ctx, docs)
		if err != nil {
			for _, i := range pos {
				results[i] = batch.NewError(postings[i].ID, err)
			}
			return summarize(results), fmt.Errorf("upsert %d documents: %w", len(docs), err)
		}
		for j, i := range pos {
			if j < len(written) {
				results[i] = written[j]
				continue
			}
			results[i] = batch.NewError(postings[i].ID, fmt.Errorf("no upsert result: %w", domain.ErrIndexUnavailable))
		}
	}

	report := summarize(results)
	s.logger.Info("ingest batch processed",
		zap.Int("postings", len(postings)),
		zap.Int("written", report.Written),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) embedDocs(ctx context.Context, docs []domain.IndexedDocument) error {
	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Content
	}
	res, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	for i := range docs {
		docs[i].Embedding = res.Embeddings[i]
	}
	return nil
}

func summarize(results []batch.Result) Report {
	r := Report{Results: results}
	for _, res := range results {
		switch res.Status() {
		case batch.StatusOK:
			r.Written++
		case batch.StatusError:
			r.Failed++
		}
	}
	return r
}
