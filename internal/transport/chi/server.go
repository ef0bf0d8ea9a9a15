// Package chi exposes the matcher over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/batch"
	"github.com/kailas-cloud/jobmatch/internal/domain/search/mode"
	"github.com/kailas-cloud/jobmatch/internal/extract"
	logpkg "github.com/kailas-cloud/jobmatch/internal/logger"
	"github.com/kailas-cloud/jobmatch/internal/usecase/health"
	"github.com/kailas-cloud/jobmatch/internal/usecase/ingest"
	"github.com/kailas-cloud/jobmatch/internal/usecase/jobsync"
	"github.com/kailas-cloud/jobmatch/internal/usecase/match"
)

// Defaults applied by NewServer.
const (
	DefaultK              = 3
	DefaultFileK          = 5
	DefaultSnippetRunes   = 200
	DefaultMaxUploadBytes = 10 << 20
)

// Ingester writes postings into the vector index.
type Ingester interface {
	Ingest(ctx context.Context, postings []domain.Posting) (ingest.Report, error)
}

// Searcher answers free-text queries against the index.
type Searcher interface {
	Search(ctx context.Context, query string, k int, m mode.Mode) ([]domain.MatchResult, error)
}

// Matcher ranks caller-supplied candidates.
type Matcher interface {
	Rank(ctx context.Context, query string, candidates []*domain.Posting) (match.Report, error)
}

// Explainer justifies a match in prose.
type Explainer interface {
	Explain(ctx context.Context, query, description string) (string, error)
}

// Syncer runs sync and repair passes.
type Syncer interface {
	Run(ctx context.Context) (jobsync.Report, error)
	Repair(ctx context.Context) (jobsync.RepairReport, error)
	Status(ctx context.Context) (jobsync.Status, error)
}

// HealthChecker aggregates dependency checks.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Services are the use cases behind the routes. Sync may be nil.
type Services struct {
	Ingest  Ingester
	Search  Searcher
	Match   Matcher
	Explain Explainer
	Sync    Syncer
	Health  HealthChecker
}

// Config tunes request handling.
type Config struct {
	DefaultK       int
	FileK          int
	SnippetRunes   int
	MaxUploadBytes int64
	AuthHeader     string
	APIKeys        []string
}

// Server holds the HTTP handlers.
type Server struct {
	svc           Services
	cfg           Config
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, cfg Config, logger *zap.Logger) *Server {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultK
	}
	if cfg.FileK <= 0 {
		cfg.FileK = DefaultFileK
	}
	if cfg.SnippetRunes <= 0 {
		cfg.SnippetRunes = DefaultSnippetRunes
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, cfg: cfg, logger: logger, errorHandlers: defaultErrorHandlers()}
}

// Mount registers all routes on r. Writes are guarded by the API key middleware.
func (s *Server) Mount(r chi.Router) {
	r.Post("/search", s.Search)
	r.Post("/recommend_file", s.RecommendFile)
	r.Post("/explain", s.Explain)
	r.Post("/match", s.Match)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(APIKeyMiddleware(s.cfg.AuthHeader, s.cfg.APIKeys))
		r.Post("/ingest", s.Ingest)
		if s.svc.Sync != nil {
			r.Post("/sync", s.Sync)
			r.Post("/sync/repair", s.Repair)
			r.Get("/sync/status", s.SyncStatus)
		}
	})
}

// Ingest handles POST /ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Jobs) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "jobs must be a non-empty list")
		return
	}

	rep, err := s.svc.Ingest.Ingest(r.Context(), req.Jobs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	failed := []ingestFailure{}
	for _, res := range rep.Results {
		if res.Status() != batch.StatusError {
			continue
		}
		failed = append(failed, ingestFailure{JobID: res.ID(), Error: safeDomainMessage(res.Err())})
	}
	writeJSON(w, http.StatusOK, ingestResponse{Status: "success", Count: rep.Written, Failed: failed})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}
	k := s.cfg.DefaultK
	if req.K != nil {
		k = *req.K
	}
	m, err := mode.Parse(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	results, err := s.svc.Search.Search(r.Context(), req.Query, k, m)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

// RecommendFile handles POST /recommend_file.
func (s *Server) RecommendFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("resume_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "resume_file is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "resume_file could not be read")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "resume_file is empty")
		return
	}

	text, err := extract.Text(data, header.Filename)
	if err != nil {
		logpkg.FromContextOr(r.Context(), s.logger).Info("resume extraction failed",
			zap.String("filename", header.Filename), zap.Error(err))
		writeError(w, http.StatusBadRequest, CodeExtractionFailed, extractionMessage(err))
		return
	}

	results, err := s.svc.Search.Search(r.Context(), text, s.cfg.FileK, mode.Semantic)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendResponse{
		Results:        results,
		Snippet:        extract.Snippet(text, s.cfg.SnippetRunes),
		FullResumeText: text,
	})
}

// Explain handles POST /explain.
func (s *Server) Explain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if !s.decode(w, r, &req) {
		return
	}
	reason, err := s.svc.Explain.Explain(r.Context(), req.UserQuery, req.JobDescription)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{AIReason: reason})
}

// Match handles POST /match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !s.decode(w, r, &req) {
		return
	}

	rep, err := s.svc.Match.Rank(r.Context(), req.Query, decodeCandidates(req.Candidates))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := rep.Skipped
	if items == nil {
		items = []match.SkippedItem{}
	}
	writeJSON(w, http.StatusOK, matchResponse{
		Results:      rep.Results,
		Skipped:      rep.SkippedCount(),
		SkippedItems: items,
	})
}

// Sync handles POST /sync.
func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Sync.Run(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Repair handles POST /sync/repair.
func (s *Server) Repair(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Sync.Repair(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// SyncStatus handles GET /sync/status.
func (s *Server) SyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Sync.Status(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != health.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{
		Status:    report.Status,
		Checks:    report.Checks,
		Documents: report.Documents,
	})
}

// decode reads a JSON body into v, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func extractionMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return fmt.Sprintf("unsupported file type, expected one of %s", strings.Join(extract.Extensions(), ", "))
	case errors.Is(err, extract.ErrEmptyDocument):
		return "no text could be extracted from resume_file"
	default:
		return "resume_file could not be parsed"
	}
}
