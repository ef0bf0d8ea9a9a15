package chi

import (
	"encoding/json"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/usecase/health"
	"github.com/kailas-cloud/jobmatch/internal/usecase/match"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest               = "bad_request"
	CodeValidationFailed         = "validation_failed"
	CodeExtractionFailed         = "extraction_failed"
	CodeUnauthorized             = "unauthorized"
	CodeRateLimited              = "rate_limited"
	CodeEmbeddingProviderError   = "embedding_provider_error"
	CodeStoreUnavailable         = "store_unavailable"
	CodeStoreRejected            = "store_rejected"
	CodeStoreBadReply            = "store_bad_reply"
	CodeIndexUnavailable         = "index_unavailable"
	CodeKeywordSearchUnsupported = "keyword_search_not_supported"
	CodeSyncInProgress           = "sync_in_progress"
	CodeInternalError            = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ingestRequest struct {
	Jobs []domain.Posting `json:"jobs"`
}

type ingestFailure struct {
	JobID domain.JobID `json:"job_id"`
	Error string       `json:"error"`
}

type ingestResponse struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Failed []ingestFailure `json:"failed"`
}

type searchRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k"`
	Mode  string `json:"mode"`
}

type searchResponse struct {
	Results []domain.MatchResult `json:"results"`
}

type recommendResponse struct {
	Results        []domain.MatchResult `json:"results"`
	Snippet        string               `json:"extracted_text_snippet"`
	FullResumeText string               `json:"full_resume_text"`
}

type explainRequest struct {
	JobDescription string `json:"job_description"`
	UserQuery      string `json:"user_query"`
}

type explainResponse struct {
	AIReason string `json:"ai_reason"`
}

// matchRequest keeps candidates raw so one malformed entry does not fail the whole body.
type matchRequest struct {
	Query      string            `json:"query"`
	Candidates []json.RawMessage `json:"candidates"`
}

type matchResponse struct {
	Results      []domain.MatchResult `json:"results"`
	Skipped      int                  `json:"skipped"`
	SkippedItems []match.SkippedItem  `json:"skipped_items"`
}

type healthResponse struct {
	Status    health.Status                 `json:"status"`
	Checks    map[string]health.CheckResult `json:"checks"`
	Documents *int                          `json:"documents,omitempty"`
}

// decodeCandidates maps each raw entry to a posting, or nil when it is not a JSON object.
func decodeCandidates(raw []json.RawMessage) []*domain.Posting {
	out := make([]*domain.Posting, len(raw))
	for i, r := range raw {
		var p *domain.Posting
		if err := json.Unmarshal(r, &p); err != nil {
			continue
		}
		out[i] = p
	}
	return out
}
