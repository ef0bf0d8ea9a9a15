package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/jobmatch/internal/db"
)

// Get reads a cached blob. A missing key is db.ErrKeyNotFound; any other
// failure is a db.Error so callers can tell a miss from an outage.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	blob, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	case err != nil:
		return nil, &db.Error{Op: db.OpCacheGet, Key: key, Err: err}
	}
	return blob, nil
}

// Set writes a blob with no expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpCachePut, Key: key, Err: err}
	}
	return nil
}
