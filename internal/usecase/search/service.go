package search

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/search/mode"
)

// DefaultMaxK bounds k when Config.MaxK is unset.
const DefaultMaxK = 100

// Config limits result sizes.
type Config struct {
	MaxK int
}

// Service handles job search across semantic, keyword, and hybrid modes.
type Service struct {
	index Index
	embed Embedder
	maxK  int
}

// New creates a search service.
func New(index Index, embed Embedder, cfg Config) *Service {
	if cfg.MaxK <= 0 {
		cfg.MaxK = DefaultMaxK
	}
	return &Service{index: index, embed: embed, maxK: cfg.MaxK}
}

// Search ranks indexed postings for query. A blank query returns no results.
func (s *Service) Search(ctx context.Context, query string, k int, m mode.Mode) ([]domain.MatchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrValidation)
	}
	if !m.IsValid() {
		return nil, fmt.Errorf("unsupported search mode %q: %w", m, domain.ErrValidation)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.MatchResult{}, nil
	}
	k = min(k, s.maxK)

	switch m {
	case mode.Keyword:
		hits, err := s.index.SearchKeyword(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("search keyword: %w", err)
		}
		return toResults(hits), nil
	case mode.Hybrid:
		return s.searchHybrid(ctx, query, k)
	default:
		hits, err := s.searchSemantic(ctx, query, k)
		if err != nil {
			return nil, err
		}
		return toResults(hits), nil
	}
}

func (s *Service) searchSemantic(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	hits, err := s.index.SearchKNN(ctx, emb.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return hits, nil
}

// searchHybrid runs KNN and keyword search in parallel, then fuses via RRF.
func (s *Service) searchHybrid(ctx context.Context, query string, k int) ([]domain.MatchResult, error) {
	var knn, keyword []domain.ScoredDocument

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		knn, err = s.searchSemantic(gctx, query, k)
		return err
	})
	g.Go(func() error {
		var err error
		keyword, err = s.index.SearchKeyword(gctx, query, k)
		if err != nil {
			return fmt.Errorf("search keyword: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per branch
	}

	return fuseRRF(knn, keyword, k), nil
}

func toResults(hits []domain.ScoredDocument) []domain.MatchResult {
	out := make([]domain.MatchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.MatchFromDocument(h))
	}
	domain.SortResults(out)
	return out
}
