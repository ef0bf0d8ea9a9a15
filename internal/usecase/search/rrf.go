package search

import "github.com/kailas-cloud/jobmatch/internal/domain"

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges KNN and keyword hits via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// Results carry the fused score and are sorted with the usual id tie-break.
func fuseRRF(knn, keyword []domain.ScoredDocument, topK int) []domain.MatchResult {
	type scored struct {
		doc   domain.ScoredDocument
		score float64
		order int
	}

	merged := make(map[domain.JobID]*scored)
	add := func(hits []domain.ScoredDocument) {
		for rank, h := range hits {
			s := 1.0 / float64(rrfK+rank+1)
			id := h.Document.Metadata.JobID
			if existing, ok := merged[id]; ok {
				existing.score += s
				continue
			}
			merged[id] = &scored{doc: h, score: s, order: len(merged)}
		}
	}
	add(knn)
	add(keyword)

	ordered := make([]*scored, len(merged))
	for _, s := range merged {
		ordered[s.order] = s
	}

	results := make([]domain.MatchResult, 0, len(ordered))
	for _, s := range ordered {
		s.doc.Score = s.score
		results = append(results, domain.MatchFromDocument(s.doc))
	}
	domain.SortResults(results)

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
