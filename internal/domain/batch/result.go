package batch

import "github.com/kailas-cloud/jobmatch/internal/domain"

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusError   ItemStatus = "error"
	StatusSkipped ItemStatus = "skipped"
)

// Result is the outcome of processing one posting in a batch operation.
type Result struct {
	id     domain.JobID
	status ItemStatus
	err    error
}

// NewOK creates a successful batch result.
func NewOK(id domain.JobID) Result { return Result{id: id, status: StatusOK} }

// NewError creates a failed batch result.
func NewError(id domain.JobID, err error) Result {
	return Result{id: id, status: StatusError, err: err}
}

// NewSkipped creates a result for an item that was intentionally not processed.
func NewSkipped(id domain.JobID, err error) Result {
	return Result{id: id, status: StatusSkipped, err: err}
}

// ID returns the item identifier.
func (r Result) ID() domain.JobID { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// OK reports whether the item was processed.
func (r Result) OK() bool { return r.status == StatusOK }

// Partition splits results into processed ids and the rest.
func Partition(results []Result) (ok []domain.JobID, failed []Result) {
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r.id)
			continue
		}
		failed = append(failed, r)
	}
	return ok, failed
}
