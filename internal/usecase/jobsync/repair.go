package jobsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/metrics"
)

const repairState = "repair"

// Repair re-indexes pending ids that the store still has and drops the rest from the ledger.
func (s *Service) Repair(ctx context.Context) (RepairReport, error) {
	if !s.run.TryLock() {
		return RepairReport{}, domain.ErrSyncInProgress
	}
	defer s.run.Unlock()

	rep := RepairReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := s.logger.With(zap.String("run_id", rep.RunID))

	finish := func(err error) (RepairReport, error) {
		if err != nil {
			rep.Error = err.Error()
		}
		rep.FinishedAt = time.Now().UTC()
		s.mu.Lock()
		saved := rep
		s.lastRepair = &saved
		s.mu.Unlock()

		outcome := "ok"
		if err != nil || len(rep.FailedIDs) > 0 {
			outcome = "failed"
		}
		metrics.SyncRunsTotal.WithLabelValues(repairState + "_" + outcome).Inc()
		log.Info("repair pass finished",
			zap.Int("pending", rep.Pending),
			zap.Int("repaired", len(rep.Repaired)),
			zap.Int("dropped", len(rep.Dropped)),
			zap.Int("failed", len(rep.FailedIDs)),
			zap.Int("pending_after", len(rep.PendingAfter)),
		)
		return rep, err
	}

	pending, err := s.ledger.List(ctx)
	if err != nil {
		return finish(fmt.Errorf("list pending: %w", err))
	}
	rep.Pending = len(pending)
	if len(pending) == 0 {
		metrics.SyncPendingIDs.Set(0)
		return finish(nil)
	}

	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		rep.PendingAfter = pending
		return finish(fmt.Errorf("list store jobs: %w", err))
	}
	byID := make(map[domain.JobID]domain.Posting, len(jobs))
	for _, j := range jobs {
		if !j.ID.IsZero() {
			byID[j.ID] = j
		}
	}

	var present []domain.Posting
	for _, id := range pending {
		if p, ok := byID[id]; ok {
			present = append(present, p)
			continue
		}
		rep.Dropped = append(rep.Dropped, id)
	}

	var errs error
	if len(rep.Dropped) > 0 {
		if err := s.ledger.Remove(ctx, rep.Dropped); err != nil {
			errs = fmt.Errorf("drop vanished ids: %w", err)
			rep.Dropped = nil
		}
	}

	if len(present) > 0 {
		indexed, failed, partial, ierr := s.index(ctx, present, log)
		rep.Repaired = indexed
		rep.FailedIDs = failed
		if partial != nil {
			rep.Error = partial.Error()
		}
		if ierr != nil && errs == nil {
			errs = ierr
		}
	}

	rep.PendingAfter = s.pending(ctx, log)
	return finish(errs)
}
