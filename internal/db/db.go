package db

import (
	"context"
	"time"
)

// Store is the Redis-compatible facade used by the job index, the pending ledger and the
// embedding cache. Consumers depend on the narrow sub-interfaces.
//
//nolint:interfacebloat // facade; consumers use the sub-interfaces
type Store interface {
	Pinger
	HashStore
	KVStore
	SetStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore writes job documents as hashes.
type HashStore interface {
	// HSetMulti pipelines one HSET per item. The returned slice is aligned with items;
	// a nil entry means that hash was written.
	HSetMulti(ctx context.Context, items []HashSetItem) []error
}

// KVStore holds opaque blobs such as cached embeddings.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// SetStore provides unordered set operations.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SupportsTextSearch(ctx context.Context) bool
}

// Searcher runs FT.SEARCH queries. Hits carry the raw score the query produced.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index string) (int, error)
}
