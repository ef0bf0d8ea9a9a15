package jobsync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

// RunPeriodic runs a pass every interval until ctx is done. A pass that leaves ids pending
// is followed by a repair.
// Ticks that find a pass in progress are skipped.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	rep, err := s.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		s.logger.Debug("periodic sync skipped, pass in progress")
		return
	case err != nil:
		s.logger.Error("periodic sync failed", zap.Error(err))
	}

	if len(rep.PendingAfter) == 0 {
		return
	}
	if _, err := s.Repair(ctx); err != nil && !errors.Is(err, domain.ErrSyncInProgress) {
		s.logger.Error("periodic repair failed", zap.Error(err))
	}
}
