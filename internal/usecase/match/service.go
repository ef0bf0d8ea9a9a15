// Package match ranks caller-supplied candidate postings against a query.
package match

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/metrics"
)

// Skip reasons.
const (
	ReasonNullCandidate    = "null_candidate"
	ReasonEmptyDescription = "empty_description"
	ReasonEmbeddingFailed  = "embedding_failed"
)

// Defaults applied by New.
const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// SkippedItem names a candidate that did not make it into the results.
type SkippedItem struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Report is the outcome of one ranking call.
type Report struct {
	Results []domain.MatchResult
	Skipped []SkippedItem
}

// SkippedCount returns the number of skipped candidates.
func (r Report) SkippedCount() int { return len(r.Skipped) }

// Config tunes batching.
type Config struct {
	BatchSize     int
	Concurrency   int
	MaxCandidates int // 0 = unbounded
}

// Service is the matching engine.
type Service struct {
	query  Embedder
	docs   Embedder
	cfg    Config
	logger *zap.Logger
}

// New creates a matching engine. query embeds the query, docs embeds descriptions.
func New(query, docs Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{query: query, docs: docs, cfg: cfg, logger: logger}
}

type candidate struct {
	index   int
	posting domain.Posting
}

// Rank scores candidates by cosine similarity to query, best first.
// Candidates are never mutated; malformed ones are reported in Skipped.
func (s *Service) Rank(ctx context.Context, query string, candidates []*domain.Posting) (Report, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(candidates) == 0 {
		return Report{Results: []domain.MatchResult{}}, nil
	}
	if s.cfg.MaxCandidates > 0 && len(candidates) > s.cfg.MaxCandidates {
		return Report{}, fmt.Errorf("%d candidates exceeds limit %d: %w",
			len(candidates), s.cfg.MaxCandidates, domain.ErrValidation)
	}

	var report Report
	valid := make([]candidate, 0, len(candidates))
	for i, c := range candidates {
		switch {
		case c == nil:
			report.Skipped = append(report.Skipped, SkippedItem{Index: i, Reason: ReasonNullCandidate})
		case strings.TrimSpace(c.Description) == "":
			report.Skipped = append(report.Skipped, SkippedItem{Index: i, Reason: ReasonEmptyDescription})
		default:
			valid = append(valid, candidate{index: i, posting: *c})
		}
	}

	report.Results = []domain.MatchResult{}
	if len(valid) > 0 {
		qv, err := s.query.Embed(ctx, query)
		if err != nil {
			return Report{}, fmt.Errorf("embed query: %w: %w", domain.ErrEmbeddingProviderError, err)
		}

		results, failed, err := s.scoreAll(ctx, qv.Embedding, valid)
		if err != nil {
			return Report{}, err
		}
		report.Results = results
		report.Skipped = append(report.Skipped, failed...)
	}

	sortSkipped(report.Skipped)
	domain.SortResults(report.Results)
	metrics.MatchSkippedTotal.Add(float64(report.SkippedCount()))
	return report, nil
}

func (s *Service) scoreAll(
	ctx context.Context, qv []float32, valid []candidate,
) ([]domain.MatchResult, []SkippedItem, error) {
	scores := make([]float64, len(valid))
	ok := make([]bool, len(valid))

	var (
		mu       sync.Mutex
		batches  int
		failures int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for start := 0; start < len(valid); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(valid))
		batches++
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range valid[start:end] {
				texts = append(texts, c.posting.Description)
			}
			res, err := domain.EmbedAll(gctx, s.docs, texts)
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				s.logger.Warn("candidate sub-batch embedding failed",
					zap.Int("first_index", valid[start].index),
					zap.Int("size", end-start),
					zap.Error(err),
				)
				return nil
			}
			// each goroutine owns a disjoint range of scores and ok
			for i := range texts {
				scores[start+i] = domain.CosineSimilarity(qv, res.Embeddings[i])
				ok[start+i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	if failures == batches {
		return nil, nil, fmt.Errorf("all %d candidate sub-batches failed: %w", batches, domain.ErrEmbeddingProviderError)
	}

	results := make([]domain.MatchResult, 0, len(valid))
	var skipped []SkippedItem
	for i, c := range valid {
		if !ok[i] {
			skipped = append(skipped, SkippedItem{Index: c.index, Reason: ReasonEmbeddingFailed})
			continue
		}
		results = append(results, domain.MatchFromPosting(c.posting, scores[i]))
	}
	return results, skipped, nil
}

func sortSkipped(items []SkippedItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Index < items[j].Index })
}
