package jobsync

import (
	"time"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/syncstate"
)

// Skip reasons for postings that never reached the index.
const (
	ReasonMissingURL  = "missing_url"
	ReasonNotAccepted = "not_accepted_by_store"
	ReasonBatchLimit  = "batch_limit"
)

// SkippedPosting is a source-side or store-side rejection.
type SkippedPosting struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Report summarizes one sync pass.
// UnrecordedIDs failed to index after the ledger write also failed; Repair cannot see them.
type Report struct {
	RunID         string            `json:"run_id"`
	State         syncstate.State   `json:"state"`
	History       []syncstate.State `json:"history"`
	Collected     int               `json:"collected"`
	Submitted     int               `json:"submitted"`
	Accepted      int               `json:"accepted"`
	Indexed       int               `json:"indexed"`
	FailedIDs     []domain.JobID    `json:"failed_ids"`
	Skipped       []SkippedPosting  `json:"skipped"`
	PendingAfter  []domain.JobID    `json:"pending_after"`
	UnrecordedIDs []domain.JobID    `json:"unrecorded_ids,omitempty"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}

// RepairReport summarizes one repair pass.
type RepairReport struct {
	RunID        string         `json:"run_id"`
	Pending      int            `json:"pending"`
	Repaired     []domain.JobID `json:"repaired"`
	Dropped      []domain.JobID `json:"dropped"`
	FailedIDs    []domain.JobID `json:"failed_ids"`
	PendingAfter []domain.JobID `json:"pending_after"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}

// Status is the retained outcome of the latest passes.
type Status struct {
	LastRun    *Report       `json:"last_run"`
	LastRepair *RepairReport `json:"last_repair"`
	Pending    int           `json:"pending"`
}
