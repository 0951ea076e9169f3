package store

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// RedisStore is a supplemental, distributed-deployment TaskStore backend: one
// Redis string key per task, read-modify-written under a per-key
// optimistic-lock transaction (WATCH/MULTI/EXEC) so concurrent updaters never
// clobber each other even across processes.
//
// List is best-effort: Redis offers no cheap way to enumerate keys matching a
// context filter without either a secondary index or an O(n) SCAN, so List
// here performs a SCAN over the task key namespace. For large deployments,
// prefer the file or memory backend for List-heavy workloads, or maintain an
// external index; this backend targets single-key get/set/update hot paths.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore using client, namespacing keys under
// prefix (for example, "a2a:task:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "a2a:task:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

var _ TaskStore = (*RedisStore)(nil)

func (s *RedisStore) key(id string) string { return s.prefix + id }

// Get returns the task stored for id.
func (s *RedisStore) Get(ctx context.Context, id string) (types.Task, bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return types.Task{}, false, nil
	}
	if err != nil {
		return types.Task{}, false, errs.Wrap(err, "reading task from redis")
	}
	var t types.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return types.Task{}, false, errs.Wrap(err, "decoding task from redis")
	}
	return t, true, nil
}

// Set upserts task.
func (s *RedisStore) Set(ctx context.Context, task types.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return errs.Wrap(err, "encoding task for redis")
	}
	if err := s.client.Set(ctx, s.key(task.ID), data, 0).Err(); err != nil {
		return errs.Wrap(err, "writing task to redis")
	}
	return nil
}

// mutate runs fn against the current value stored at id inside a
// WATCH/MULTI/EXEC optimistic transaction, retrying on a concurrent writer
// collision (redis.TxFailedErr), mirroring the compare-and-swap idiom the
// go-redis client documents for read-modify-write updates.
func (s *RedisStore) mutate(ctx context.Context, id string, fn func(types.Task) (types.Task, error)) (types.Task, error) {
	key := s.key(id)
	var result types.Task
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return errs.TaskNotFound(id)
		}
		if err != nil {
			return errs.Wrap(err, "reading task from redis")
		}
		var t types.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return errs.Wrap(err, "decoding task from redis")
		}
		updated, err := fn(t)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(updated)
		if err != nil {
			return errs.Wrap(err, "encoding task for redis")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return errs.Wrap(err, "writing task to redis")
		}
		result = updated
		return nil
	}

	for attempt := 0; attempt < 10; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		if e, ok := err.(*errs.Error); ok {
			return types.Task{}, e
		}
		return types.Task{}, errs.Wrap(err, "updating task in redis")
	}
	return types.Task{}, errs.Wrap(nil, "updating task in redis: too many retries")
}

// UpdateStatus replaces the status of the task identified by id.
func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status types.TaskStatus) (types.Task, error) {
	return s.mutate(ctx, id, func(t types.Task) (types.Task, error) {
		t.Status = status
		return t, nil
	})
}

// AppendHistory atomically appends msg to the task's history.
func (s *RedisStore) AppendHistory(ctx context.Context, id string, msg types.Message) (types.Task, error) {
	return s.mutate(ctx, id, func(t types.Task) (types.Task, error) {
		t.History = append(t.History, msg)
		return t, nil
	})
}

// AppendOrReplaceArtifact atomically applies an artifact update to the task.
func (s *RedisStore) AppendOrReplaceArtifact(ctx context.Context, id string, artifact types.Artifact, appendChunk bool) (types.Task, error) {
	return s.mutate(ctx, id, func(t types.Task) (types.Task, error) {
		t.Artifacts = applyArtifact(t.Artifacts, artifact, appendChunk)
		return t, nil
	})
}

// List performs a best-effort SCAN over the task key namespace. Filtering by
// ContextID and pagination are applied client-side after decoding, since
// Redis has no secondary index over task contents here.
func (s *RedisStore) List(ctx context.Context, filter types.ListFilter) (types.ListResult, error) {
	var all []types.Task
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return types.ListResult{}, errs.Wrap(err, "scanning tasks in redis")
		}
		var t types.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return types.ListResult{}, errs.Wrap(err, "decoding scanned task")
		}
		if filter.ContextID != "" && t.ContextID != filter.ContextID {
			continue
		}
		all = append(all, t)
	}
	if err := iter.Err(); err != nil {
		return types.ListResult{}, errs.Wrap(err, "scanning tasks in redis")
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, filter)
}
