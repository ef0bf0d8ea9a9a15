package search

import (
	"math"
	"testing"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

func hit(id domain.JobID, score float64) domain.ScoredDocument {
	return domain.ScoredDocument{
		Document: domain.IndexedDocument{
			Content:  domain.BuildContent("Job "+id.String(), "desc"),
			Metadata: domain.Metadata{JobID: id},
		},
		Score: score,
	}
}

func TestFuseRRF_DisjointLists(t *testing.T) {
	got := fuseRRF([]domain.ScoredDocument{hit("1", 0.9)}, []domain.ScoredDocument{hit("2", 7)}, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	// equal fused scores fall back to id order
	if got[0].JobID != "1" || got[1].JobID != "2" {
		t.Errorf("unexpected order %v, %v", got[0].JobID, got[1].JobID)
	}
}

func TestFuseRRF_OverlapRanksFirst(t *testing.T) {
	knn := []domain.ScoredDocument{hit("1", 0.9), hit("2", 0.8)}
	kw := []domain.ScoredDocument{hit("2", 3), hit("3", 1)}

	got := fuseRRF(knn, kw, 10)
	if got[0].JobID != "2" {
		t.Fatalf("document in both lists should rank first, got %s", got[0].JobID)
	}
	want := 1.0/62 + 1.0/61
	if math.Abs(got[0].MatchScore-want) > 1e-12 {
		t.Errorf("fused score = %f, want %f", got[0].MatchScore, want)
	}
}

func TestFuseRRF_EmptyInputs(t *testing.T) {
	if got := fuseRRF(nil, nil, 5); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestFuseRRF_TopKLimiting(t *testing.T) {
	knn := []domain.ScoredDocument{hit("1", 1), hit("2", 1), hit("3", 1)}
	if got := fuseRRF(knn, nil, 2); len(got) != 2 {
		t.Errorf("expected 2 results, got %d", len(got))
	}
}

func TestFuseRRF_Monotonic(t *testing.T) {
	knn := []domain.ScoredDocument{hit("5", 1), hit("4", 1), hit("3", 1)}
	kw := []domain.ScoredDocument{hit("3", 1), hit("9", 1)}
	got := fuseRRF(knn, kw, 10)
	for i := 1; i < len(got); i++ {
		if got[i-1].MatchScore < got[i].MatchScore {
			t.Fatalf("scores increase at rank %d", i)
		}
	}
}
