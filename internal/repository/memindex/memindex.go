// Package memindex is an in-process vector index for local runs and tests.
package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/batch"
	"github.com/kailas-cloud/jobmatch/internal/domain/terms"
)

type entry struct {
	doc domain.IndexedDocument
	tf  map[string]int
	len int
}

// Store keeps one document per job id and scores by brute force.
type Store struct {
	mu         sync.RWMutex
	dimensions int
	docs       map[domain.JobID]entry
}

// New creates an empty index. A positive dimensions rejects vectors of other lengths.
func New(dimensions int) *Store {
	return &Store{dimensions: dimensions, docs: make(map[domain.JobID]entry)}
}

// EnsureIndex is a no-op.
func (s *Store) EnsureIndex(context.Context) error { return nil }

// HealthCheck always succeeds.
func (s *Store) HealthCheck(context.Context) error { return nil }

// Upsert replaces documents by job id.
func (s *Store) Upsert(_ context.Context, docs []domain.IndexedDocument) ([]batch.Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	results := make([]batch.Result, len(docs))

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range docs {
		doc := docs[i]
		id := doc.Metadata.JobID
		switch {
		case id.IsZero():
			results[i] = batch.NewError("", domain.ErrMissingJobID)
		case s.dimensions > 0 && len(doc.Embedding) != s.dimensions:
			results[i] = batch.NewError(id, fmt.Errorf(
				"embedding has %d dimensions, index expects %d: %w",
				len(doc.Embedding), s.dimensions, domain.ErrValidation,
			))
		default:
			doc.Embedding = append([]float32(nil), doc.Embedding...)
			toks := terms.Tokenize(doc.Content)
			s.docs[id] = entry{doc: doc, tf: terms.Frequencies(toks), len: len(toks)}
			results[i] = batch.NewOK(id)
		}
	}
	return results, nil
}

// Get returns a copy of the stored document. Use-case tests read back through it.
func (s *Store) Get(_ context.Context, id domain.JobID) (domain.IndexedDocument, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[id]
	if !ok {
		return domain.IndexedDocument{}, false, nil
	}
	doc := e.doc
	doc.Embedding = append([]float32(nil), e.doc.Embedding...)
	return doc, true, nil
}

// SearchKNN scores every document by cosine similarity.
func (s *Store) SearchKNN(_ context.Context, vector []float32, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	out := make([]domain.ScoredDocument, 0, len(s.docs))
	for _, e := range s.docs {
		out = append(out, domain.ScoredDocument{
			Document: e.doc,
			Score:    domain.CosineSimilarity(vector, e.doc.Embedding),
		})
	}
	s.mu.RUnlock()

	return top(out, k), nil
}

// SearchKeyword ranks by log-scaled term frequency normalized by document length.
func (s *Store) SearchKeyword(_ context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	qterms := terms.Tokenize(query)
	if len(qterms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	out := make([]domain.ScoredDocument, 0)
	for _, e := range s.docs {
		var score float64
		for _, t := range qterms {
			if n := e.tf[t]; n > 0 {
				score += 1 + math.Log(float64(n))
			}
		}
		if score == 0 {
			continue
		}
		out = append(out, domain.ScoredDocument{
			Document: e.doc,
			Score:    score / math.Sqrt(float64(e.len)),
		})
	}
	s.mu.RUnlock()

	return top(out, k), nil
}

// Count returns the number of stored documents.
func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func top(hits []domain.ScoredDocument, k int) []domain.ScoredDocument {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return domain.CompareIDs(hits[i].Document.Metadata.JobID, hits[j].Document.Metadata.JobID) < 0
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
