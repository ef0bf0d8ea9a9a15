// Package ledger records store-accepted job ids that are not yet in the vector index.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

// DefaultKey is the Redis set holding pending ids.
const DefaultKey = "jobmatch:sync:pending"

// setStore is the consumer interface for the Redis ledger (ISP).
type setStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// Redis keeps the pending set in a Redis set.
type Redis struct {
	store setStore
	key   string
}

// NewRedis creates a Redis-backed ledger. An empty key uses DefaultKey.
func NewRedis(s setStore, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{store: s, key: key}
}

// Add marks ids as pending.
func (l *Redis) Add(ctx context.Context, ids []domain.JobID) error {
	if err := l.store.SAdd(ctx, l.key, toStrings(ids)...); err != nil {
		return fmt.Errorf("ledger add: %w", err)
	}
	return nil
}

// Remove clears ids from the pending set.
func (l *Redis) Remove(ctx context.Context, ids []domain.JobID) error {
	if err := l.store.SRem(ctx, l.key, toStrings(ids)...); err != nil {
		return fmt.Errorf("ledger remove: %w", err)
	}
	return nil
}

// List returns pending ids in ascending id order.
func (l *Redis) List(ctx context.Context) ([]domain.JobID, error) {
	members, err := l.store.SMembers(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}
	ids := make([]domain.JobID, 0, len(members))
	for _, m := range members {
		ids = append(ids, domain.JobID(m))
	}
	sortIDs(ids)
	return ids, nil
}

// Count returns the number of pending ids.
func (l *Redis) Count(ctx context.Context) (int, error) {
	n, err := l.store.SCard(ctx, l.key)
	if err != nil {
		return 0, fmt.Errorf("ledger count: %w", err)
	}
	return int(n), nil
}

// Memory is a process-local ledger.
type Memory struct {
	mu  sync.Mutex
	ids map[domain.JobID]struct{}
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{ids: make(map[domain.JobID]struct{})}
}

// Add marks ids as pending.
func (l *Memory) Add(_ context.Context, ids []domain.JobID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
	return nil
}

// Remove clears ids from the pending set.
func (l *Memory) Remove(_ context.Context, ids []domain.JobID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		delete(l.ids, id)
	}
	return nil
}

// List returns pending ids in ascending id order.
func (l *Memory) List(_ context.Context) ([]domain.JobID, error) {
	l.mu.Lock()
	ids := make([]domain.JobID, 0, len(l.ids))
	for id := range l.ids {
		ids = append(ids, id)
	}
	l.mu.Unlock()
	sortIDs(ids)
	return ids, nil
}

// Count returns the number of pending ids.
func (l *Memory) Count(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids), nil
}

func toStrings(ids []domain.JobID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func sortIDs(ids []domain.JobID) {
	sort.Slice(ids, func(i, j int) bool { return domain.CompareIDs(ids[i], ids[j]) < 0 })
}
