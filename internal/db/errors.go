package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrIndexExists = errors.New("db: index already exists")
)

// Op names a failed store operation by what it was doing for jobmatch,
// not by the wire command.
type Op string

// Index lifecycle.
const (
	OpIndexCreate Op = "index.create"
	OpIndexInfo   Op = "index.info"
)

// Job documents and their search.
const (
	OpJobWrite    Op = "job.write"
	OpSearchKNN   Op = "search.knn"
	OpSearchText  Op = "search.text"
	OpSearchCount Op = "search.count"
)

// Embedding cache.
const (
	OpCacheGet Op = "cache.get"
	OpCachePut Op = "cache.put"
)

// Pending ledger set.
const (
	OpSetAdd     Op = "set.add"
	OpSetRemove  Op = "set.remove"
	OpSetMembers Op = "set.members"
	OpSetCount   Op = "set.count"
)

// Error is a store failure tagged with the operation and, when there is one,
// the key it touched.
type Error struct {
	Op  Op
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "db " + string(e.Op) + ": " + e.Err.Error()
	}
	return "db " + string(e.Op) + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
