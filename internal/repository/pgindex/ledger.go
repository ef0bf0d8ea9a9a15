package pgindex

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

// Ledger keeps pending job ids in the pending_jobs table. Each call is bounded
// by the store timeout.
type Ledger struct {
	store *Store
}

// Ledger returns the pending ledger sharing this store's pool.
func (s *Store) Ledger() *Ledger { return &Ledger{store: s} }

// Add marks ids as pending.
func (l *Ledger) Add(ctx context.Context, ids []domain.JobID) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := l.store.withTimeout(ctx)
	defer cancel()

	_, err := l.store.pool.Exec(ctx,
		"INSERT INTO pending_jobs (job_id) SELECT unnest($1::text[]) ON CONFLICT DO NOTHING",
		idStrings(ids),
	)
	if err != nil {
		return fmt.Errorf("ledger add: %w", err)
	}
	return nil
}

// Remove clears ids from the pending set.
func (l *Ledger) Remove(ctx context.Context, ids []domain.JobID) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := l.store.withTimeout(ctx)
	defer cancel()

	if _, err := l.store.pool.Exec(ctx, "DELETE FROM pending_jobs WHERE job_id = ANY($1)", idStrings(ids)); err != nil {
		return fmt.Errorf("ledger remove: %w", err)
	}
	return nil
}

// List returns pending ids ordered numerically where possible.
func (l *Ledger) List(ctx context.Context) ([]domain.JobID, error) {
	ctx, cancel := l.store.withTimeout(ctx)
	defer cancel()

	rows, err := l.store.pool.Query(ctx, `
		SELECT job_id FROM pending_jobs
		ORDER BY CASE WHEN job_id ~ '^[0-9]+$' THEN lpad(job_id, 20, '0') ELSE job_id END`)
	if err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}
	defer rows.Close()

	var ids []domain.JobID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ledger scan: %w", err)
		}
		ids = append(ids, domain.JobID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger rows: %w", err)
	}
	return ids, nil
}

// Count returns the number of pending ids.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	ctx, cancel := l.store.withTimeout(ctx)
	defer cancel()

	var n int
	if err := l.store.pool.QueryRow(ctx, "SELECT count(*) FROM pending_jobs").Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger count: %w", err)
	}
	return n, nil
}

func idStrings(ids []domain.JobID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
