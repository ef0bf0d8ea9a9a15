// Package jobsync keeps the authoritative store and the vector index consistent.
package jobsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/syncstate"
	"github.com/kailas-cloud/jobmatch/internal/metrics"
)

// Defaults applied by New.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultAttemptTimeout = 30 * time.Second
)

// Config tunes one pass.
type Config struct {
	BatchLimit     int // 0 = unbounded
	MaxRetries     int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
}

// Service runs sync and repair passes. At most one pass runs at a time.
type Service struct {
	source Source
	store  Store
	ingest Ingester
	ledger Ledger
	cfg    Config
	logger *zap.Logger

	run sync.Mutex

	mu         sync.RWMutex
	lastRun    *Report
	lastRepair *RepairReport
}

// New creates a sync service.
func New(source Source, store Store, ing Ingester, ledger Ledger, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, store: store, ingest: ing, ledger: ledger, cfg: cfg, logger: logger}
}

// Run performs one pass: collect, submit, record pending, index, clear pending.
// Protocol outcomes (rejection, index failures) are carried in the report.
// The error is non-nil for lock contention and source failures.
func (s *Service) Run(ctx context.Context) (Report, error) {
	if !s.run.TryLock() {
		return Report{}, domain.ErrSyncInProgress
	}
	defer s.run.Unlock()

	m := syncstate.NewMachine()
	rep := Report{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := s.logger.With(zap.String("run_id", rep.RunID))

	finish := func() Report {
		rep.State = m.Current()
		rep.History = m.History()
		rep.FinishedAt = time.Now().UTC()
		s.mu.Lock()
		saved := rep
		s.lastRun = &saved
		s.mu.Unlock()
		metrics.SyncRunsTotal.WithLabelValues(string(rep.State)).Inc()
		log.Info("sync pass finished",
			zap.String("state", string(rep.State)),
			zap.Int("collected", rep.Collected),
			zap.Int("submitted", rep.Submitted),
			zap.Int("accepted", rep.Accepted),
			zap.Int("indexed", rep.Indexed),
			zap.Int("failed", len(rep.FailedIDs)),
			zap.Int("pending_after", len(rep.PendingAfter)),
			zap.String("error", rep.Error),
		)
		return rep
	}

	raw, err := s.source.Collect(ctx)
	if err != nil {
		rep.Error = err.Error()
		return finish(), fmt.Errorf("collect postings: %w", err)
	}
	batch := s.prepare(raw, &rep)
	rep.Collected = len(raw)
	metrics.SyncPostingsTotal.WithLabelValues("collected").Add(float64(len(raw)))

	if len(batch) == 0 {
		log.Info("nothing to submit")
		rep.PendingAfter = s.pending(ctx, log)
		return finish(), nil
	}

	must(m.Advance(syncstate.Submitted))
	rep.Submitted = len(batch)
	metrics.SyncPostingsTotal.WithLabelValues("submitted").Add(float64(len(batch)))

	accepted, err := s.submit(ctx, batch, log)
	if err != nil {
		must(m.Advance(syncstate.Rejected))
		rep.Error = err.Error()
		rep.PendingAfter = s.pending(ctx, log)
		return finish(), nil
	}
	accepted = withIDs(accepted)
	rep.Accepted = len(accepted)
	rep.Skipped = append(rep.Skipped, notAccepted(batch, accepted)...)
	metrics.SyncPostingsTotal.WithLabelValues("accepted").Add(float64(len(accepted)))

	switch {
	case len(accepted) == 0:
		must(m.Advance(syncstate.Rejected))
		rep.Error = "store accepted no postings"
		rep.PendingAfter = s.pending(ctx, log)
		return finish(), nil
	case len(accepted) < len(batch):
		must(m.Advance(syncstate.PartiallyAccepted))
	default:
		must(m.Advance(syncstate.Accepted))
	}

	ids := idsOf(accepted)
	ledgerErr := s.ledger.Add(ctx, ids)
	if ledgerErr != nil {
		log.Error("record pending ids failed", zap.Int("ids", len(ids)), zap.Error(ledgerErr))
		rep.Error = fmt.Sprintf("pending ledger: %v", ledgerErr)
	}

	must(m.Advance(syncstate.Indexing))
	indexed, failed, partial, ierr := s.index(ctx, accepted, log)
	rep.Indexed = len(indexed)
	rep.FailedIDs = failed
	metrics.SyncPostingsTotal.WithLabelValues("indexed").Add(float64(len(indexed)))
	metrics.SyncPostingsTotal.WithLabelValues("failed").Add(float64(len(failed)))
	if ierr != nil {
		rep.Error = joinErr(rep.Error, ierr.Error())
	}
	if partial != nil {
		rep.Error = joinErr(rep.Error, partial.Error())
	}
	if ledgerErr != nil && len(failed) > 0 {
		// Not in the ledger, so Repair cannot see them.
		rep.UnrecordedIDs = failed
		log.Error("failed ids are not recorded as pending",
			zap.Strings("job_ids", jobIDStrings(failed)))
	}

	if len(failed) == 0 && ierr == nil {
		must(m.Advance(syncstate.Indexed))
	} else {
		must(m.Advance(syncstate.IndexFailed))
	}
	rep.PendingAfter = s.pending(ctx, log)
	return finish(), nil
}

// prepare normalizes postings, skips those without a URL and applies the batch limit.
func (s *Service) prepare(raw []domain.Posting, rep *Report) []domain.Posting {
	out := make([]domain.Posting, 0, len(raw))
	for _, p := range raw {
		p = p.Normalized()
		p.ID = ""
		switch {
		case p.URL == "":
			rep.Skipped = append(rep.Skipped, SkippedPosting{Title: p.Title, Reason: ReasonMissingURL})
		case s.cfg.BatchLimit > 0 && len(out) >= s.cfg.BatchLimit:
			rep.Skipped = append(rep.Skipped, SkippedPosting{Title: p.Title, URL: p.URL, Reason: ReasonBatchLimit})
		default:
			out = append(out, p)
		}
	}
	return out
}

// submit posts the batch with exponential backoff. Rejections and unreadable replies are not
// retried: the store may already have committed the batch.
func (s *Service) submit(ctx context.Context, batch []domain.Posting, log *zap.Logger) ([]domain.Posting, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.InitialBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.cfg.MaxRetries)), ctx)

	var accepted []domain.Posting
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()

		res, err := s.store.SubmitBatch(actx, batch)
		if err == nil {
			accepted = res
			return nil
		}
		log.Warn("store intake attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if errors.Is(err, domain.ErrStoreRejected) || errors.Is(err, domain.ErrStoreBadReply) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("submit batch after %d attempt(s): %w", attempt, err)
	}
	return accepted, nil
}

// index ingests postings and clears the indexed ids from the ledger.
// partial wraps domain.ErrPartialBatchFailure when ingest ran but some ids failed;
// err reports a whole-batch or ledger failure.
func (s *Service) index(
	ctx context.Context, postings []domain.Posting, log *zap.Logger,
) (indexed, failed []domain.JobID, partial, err error) {
	report, err := s.ingest.Ingest(ctx, postings)
	if err == nil {
		partial = report.Err()
	}
	indexed = report.IndexedIDs()

	done := make(map[domain.JobID]struct{}, len(indexed))
	for _, id := range indexed {
		done[id] = struct{}{}
	}
	seen := make(map[domain.JobID]struct{}, len(postings))
	for _, p := range postings {
		if _, ok := done[p.ID]; ok {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		failed = append(failed, p.ID)
	}

	if len(indexed) > 0 {
		if rerr := s.ledger.Remove(ctx, indexed); rerr != nil {
			log.Error("clear indexed ids from ledger failed", zap.Int("ids", len(indexed)), zap.Error(rerr))
			err = errors.Join(err, fmt.Errorf("pending ledger: %w", rerr))
		}
	}
	return indexed, failed, partial, err
}

func (s *Service) pending(ctx context.Context, log *zap.Logger) []domain.JobID {
	ids, err := s.ledger.List(ctx)
	if err != nil {
		log.Warn("list pending ids failed", zap.Error(err))
		return nil
	}
	metrics.SyncPendingIDs.Set(float64(len(ids)))
	return ids
}

// Status returns the last reports and the current pending count.
func (s *Service) Status(ctx context.Context) (Status, error) {
	s.mu.RLock()
	st := Status{LastRun: s.lastRun, LastRepair: s.lastRepair}
	s.mu.RUnlock()

	n, err := s.ledger.Count(ctx)
	if err != nil {
		return st, fmt.Errorf("count pending: %w", err)
	}
	st.Pending = n
	return st, nil
}

func withIDs(postings []domain.Posting) []domain.Posting {
	out := postings[:0:0]
	for _, p := range postings {
		if !p.ID.IsZero() {
			out = append(out, p)
		}
	}
	return out
}

func idsOf(postings []domain.Posting) []domain.JobID {
	ids := make([]domain.JobID, 0, len(postings))
	for _, p := range postings {
		ids = append(ids, p.ID)
	}
	return ids
}

// notAccepted lists submitted postings whose URL is absent from the accepted set.
func notAccepted(submitted, accepted []domain.Posting) []SkippedPosting {
	urls := make(map[string]struct{}, len(accepted))
	for _, p := range accepted {
		urls[strings.TrimSpace(p.URL)] = struct{}{}
	}
	var out []SkippedPosting
	for _, p := range submitted {
		if _, ok := urls[p.URL]; ok {
			continue
		}
		out = append(out, SkippedPosting{Title: p.Title, URL: p.URL, Reason: ReasonNotAccepted})
	}
	return out
}

func joinErr(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// must panics on an illegal state transition, which is a programming error.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

func jobIDStrings(ids []domain.JobID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
