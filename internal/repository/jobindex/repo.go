// Package jobindex stores job documents as Redis hashes behind an HNSW FT index.
package jobindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/jobmatch/internal/db"
	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/batch"
)

// store is the consumer interface for the job index (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) []error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SupportsTextSearch(ctx context.Context) bool
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string) (int, error)
}

// Config controls key layout and the vector schema.
type Config struct {
	KeyPrefix       string // default "jobmatch:"
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
	Timeout         time.Duration
}

// Repo implements the vector index over a Redis-compatible store.
type Repo struct {
	store     store
	cfg       Config
	docPrefix string
	indexName string
}

// New creates a job index repository.
func New(s store, cfg Config) *Repo {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "jobmatch:"
	}
	return &Repo{
		store:     s,
		cfg:       cfg,
		docPrefix: cfg.KeyPrefix + "job:",
		indexName: cfg.KeyPrefix + "jobs:idx",
	}
}

func (r *Repo) docKey(id domain.JobID) string { return r.docPrefix + id.String() }

func (r *Repo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
}

// EnsureIndex creates the FT index when it is missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return unavailable("check index", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(r.indexName).
		Prefix(r.docPrefix).
		Text(fieldContent).
		Tag(fieldJobID).
		Tag(fieldSource).
		VectorHNSW(fieldVector, r.cfg.Dimensions, db.DistanceCosine, r.cfg.HNSWM, r.cfg.HNSWEFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return unavailable("create index", err)
	}
	return nil
}

// Upsert writes one hash per document, overwriting by job id.
// It fails as a whole only when no document could be written.
func (r *Repo) Upsert(ctx context.Context, docs []domain.IndexedDocument) ([]batch.Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	results := make([]batch.Result, len(docs))
	items := make([]db.HashSetItem, 0, len(docs))
	pos := make([]int, 0, len(docs))

	for i := range docs {
		doc := &docs[i]
		switch {
		case doc.Metadata.JobID.IsZero():
			results[i] = batch.NewError("", domain.ErrMissingJobID)
		case r.cfg.Dimensions > 0 && len(doc.Embedding) != r.cfg.Dimensions:
			results[i] = batch.NewError(doc.Metadata.JobID, fmt.Errorf(
				"embedding has %d dimensions, index expects %d: %w",
				len(doc.Embedding), r.cfg.Dimensions, domain.ErrValidation,
			))
		default:
			items = append(items, db.HashSetItem{Key: r.docKey(doc.Metadata.JobID), Fields: buildHashFields(doc)})
			pos = append(pos, i)
		}
	}

	if len(items) == 0 {
		return results, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	errs := r.store.HSetMulti(ctx, items)
	failed := 0
	var lastErr error
	for j, i := range pos {
		id := docs[i].Metadata.JobID
		if j < len(errs) && errs[j] != nil {
			failed++
			lastErr = errs[j]
			results[i] = batch.NewError(id, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, errs[j]))
			continue
		}
		results[i] = batch.NewOK(id)
	}

	if failed == len(items) {
		return nil, unavailable("upsert", lastErr)
	}
	return results, nil
}

// SearchKNN returns up to k nearest documents by cosine similarity, best first.
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  fieldVector,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, unavailable("knn search", err)
	}
	return r.toScored(res), nil
}

// SearchKeyword ranks documents by BM25 over content.
func (r *Repo) SearchKeyword(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	if !r.store.SupportsTextSearch(ctx) {
		return nil, domain.ErrKeywordSearchNotSupported
	}
	if k <= 0 {
		return nil, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    r.indexName,
		Field:        fieldContent,
		Query:        query,
		TopK:         k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, unavailable("keyword search", err)
	}
	return r.toScored(res), nil
}

// Count returns the number of indexed documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.store.SearchCount(ctx, r.indexName)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// HealthCheck pings the backing store.
func (r *Repo) HealthCheck(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.store.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (r *Repo) toScored(res *db.SearchResult) []domain.ScoredDocument {
	if res == nil {
		return nil
	}
	out := make([]domain.ScoredDocument, 0, len(res.Hits))
	for _, e := range res.Hits {
		out = append(out, domain.ScoredDocument{
			Document: parseHashFields(e.Key, r.docPrefix, e.Fields),
			Score:    e.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
