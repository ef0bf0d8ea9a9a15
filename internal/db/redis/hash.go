package redis

import (
	"context"
	"errors"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/jobmatch/internal/db"
)

var errNoReply = errors.New("no reply in pipeline")

// HSetMulti writes every job hash in one DoMulti round-trip. Each HSET is atomic
// on its own; the batch is not, so failures are reported per item.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) []error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(items))
	for _, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for field, value := range item.Fields {
			cmd = cmd.FieldValue(field, value)
		}
		cmds = append(cmds, cmd.Build())
	}

	replies := s.client.DoMulti(ctx, cmds...)
	errs := make([]error, len(items))
	for i, item := range items {
		var err error
		if i < len(replies) {
			err = replies[i].Error()
		} else {
			err = errNoReply
		}
		if err != nil {
			errs[i] = &db.Error{Op: db.OpJobWrite, Key: item.Key, Err: err}
		}
	}
	return errs
}
