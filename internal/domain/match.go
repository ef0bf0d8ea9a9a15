package domain

import "sort"

// ScoredDocument is a vector index hit.
type ScoredDocument struct {
	Document IndexedDocument
	Score    float64
}

// MatchResult is one ranked posting returned to callers.
type MatchResult struct {
	JobID       JobID   `json:"job_id"`
	Title       string  `json:"title"`
	Company     string  `json:"company,omitempty"`
	Location    string  `json:"location,omitempty"`
	Description string  `json:"description"`
	MatchScore  float64 `json:"match_score"`
	URL         string  `json:"url"`
	Source      string  `json:"source"`
	AIReason    *string `json:"ai_reason"`
}

// MatchFromDocument builds a result from an index hit. The title is the first content line.
func MatchFromDocument(d ScoredDocument) MatchResult {
	return MatchResult{
		JobID:       d.Document.Metadata.JobID,
		Title:       TitleFromContent(d.Document.Content),
		Description: d.Document.Content,
		MatchScore:  d.Score,
		URL:         d.Document.Metadata.URL,
		Source:      d.Document.Metadata.Source,
	}
}

// MatchFromPosting builds a result from a raw candidate posting.
func MatchFromPosting(p Posting, score float64) MatchResult {
	return MatchResult{
		JobID:       p.ID,
		Title:       p.Title,
		Company:     p.Company,
		Location:    p.Location,
		Description: p.Description,
		MatchScore:  score,
		URL:         p.URL,
		Source:      p.Source,
	}
}

// SortResults orders by score descending, then id ascending. Equal keys keep input order.
func SortResults(results []MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MatchScore != results[j].MatchScore {
			return results[i].MatchScore > results[j].MatchScore
		}
		return CompareIDs(results[i].JobID, results[j].JobID) < 0
	})
}
