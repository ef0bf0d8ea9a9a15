package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	logpkg "github.com/kailas-cloud/jobmatch/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// defaultErrorHandlers is ordered: the first matching sentinel wins.
// Rate limits wrap the provider error too, so they come first.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrMissingJobID, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrExtraction, http.StatusBadRequest, CodeExtractionFailed),
		sentinelHandler(domain.ErrSyncInProgress, http.StatusConflict, CodeSyncInProgress),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrStoreRejected, http.StatusBadGateway, CodeStoreRejected),
		sentinelHandler(domain.ErrStoreBadReply, http.StatusBadGateway, CodeStoreBadReply),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable),
		sentinelHandler(domain.ErrKeywordSearchNotSupported, http.StatusNotImplemented, CodeKeywordSearchUnsupported),
	}
}

// safeMessages are the sentinels whose text may reach clients.
var safeMessages = []error{
	domain.ErrValidation,
	domain.ErrMissingJobID,
	domain.ErrExtraction,
	domain.ErrSyncInProgress,
	domain.ErrRateLimited,
	domain.ErrEmbeddingProviderError,
	domain.ErrStoreRejected,
	domain.ErrStoreBadReply,
	domain.ErrStoreUnavailable,
	domain.ErrIndexUnavailable,
	domain.ErrKeywordSearchNotSupported,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range safeMessages {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
