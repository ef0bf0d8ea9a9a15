package domain

import "errors"

var (
	// ErrValidation signals missing or malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrExtraction signals an unreadable or unsupported document.
	ErrExtraction = errors.New("text extraction failed")
	// ErrMissingJobID signals a posting that has not been accepted by the authoritative store.
	ErrMissingJobID = errors.New("posting has no job id")

	// ErrStoreUnavailable signals that the authoritative store could not be reached.
	ErrStoreUnavailable = errors.New("authoritative store unavailable")
	// ErrStoreRejected signals that the authoritative store refused a batch.
	ErrStoreRejected = errors.New("authoritative store rejected batch")
	// ErrStoreBadReply signals a 2xx store reply that could not be read. The batch may be committed.
	ErrStoreBadReply = errors.New("authoritative store reply malformed")
	// ErrIndexUnavailable signals that the vector index could not be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrPartialBatchFailure signals that some items of a batch were not processed.
	ErrPartialBatchFailure = errors.New("partial batch failure")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationFailure signals a generative model failure.
	ErrGenerationFailure = errors.New("generation failed")
	// ErrKeywordSearchNotSupported signals that the backend lacks keyword search.
	ErrKeywordSearchNotSupported = errors.New("keyword search not supported by backend")
	// ErrSyncInProgress signals that another sync or repair pass holds the run lock.
	ErrSyncInProgress = errors.New("sync already in progress")
)
