package eventstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/eventstore"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// runEventStoreConformance exercises the EventStore contract shared by every
// backend.
func runEventStoreConformance(t *testing.T, s eventstore.EventStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("append assigns dense zero-based sequence", func(t *testing.T) {
		taskID := uuid.NewString()
		for i := 0; i < 3; i++ {
			seq, err := s.Append(ctx, taskID, types.NewMessageEvent(taskID, "", types.Message{MessageID: uuid.NewString(), Role: types.RoleUser}))
			require.NoError(t, err)
			assert.Equal(t, uint64(i), seq)
		}
		records, err := s.ReadAll(ctx, taskID)
		require.NoError(t, err)
		require.Len(t, records, 3)
		for i, r := range records {
			assert.Equal(t, uint64(i), r.Seq)
		}
	})

	t.Run("read all on unknown task returns empty, not error", func(t *testing.T) {
		records, err := s.ReadAll(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("append after close fails", func(t *testing.T) {
		taskID := uuid.NewString()
		_, err := s.Append(ctx, taskID, types.NewMessageEvent(taskID, "", types.Message{MessageID: uuid.NewString(), Role: types.RoleUser}))
		require.NoError(t, err)
		require.NoError(t, s.Close(ctx, taskID))

		closed, err := s.IsClosed(ctx, taskID)
		require.NoError(t, err)
		assert.True(t, closed)

		_, err = s.Append(ctx, taskID, types.NewMessageEvent(taskID, "", types.Message{MessageID: uuid.NewString(), Role: types.RoleUser}))
		assert.True(t, errs.IsUnsupportedOperation(err))
	})

	t.Run("tail from zero replays existing then terminates on close", func(t *testing.T) {
		taskID := uuid.NewString()
		_, err := s.Append(ctx, taskID, types.NewMessageEvent(taskID, "", types.Message{MessageID: "m1", Role: types.RoleUser}))
		require.NoError(t, err)

		tailCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		out, errc := s.TailFrom(tailCtx, taskID, 0)

		var got []eventstore.Record
		done := make(chan struct{})
		go func() {
			defer close(done)
			for r := range out {
				got = append(got, r)
			}
		}()

		require.NoError(t, s.Close(ctx, taskID))

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("tail did not terminate after close")
		}
		require.NoError(t, <-errc)
		require.Len(t, got, 1)
		assert.Equal(t, uint64(0), got[0].Seq)
	})

	t.Run("tail blocks then delivers a live append", func(t *testing.T) {
		taskID := uuid.NewString()
		tailCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		out, _ := s.TailFrom(tailCtx, taskID, 0)

		received := make(chan eventstore.Record, 1)
		go func() {
			for r := range out {
				received <- r
				return
			}
		}()

		time.Sleep(50 * time.Millisecond)
		_, err := s.Append(ctx, taskID, types.NewMessageEvent(taskID, "", types.Message{MessageID: "live", Role: types.RoleUser}))
		require.NoError(t, err)

		select {
		case r := <-received:
			assert.Equal(t, uint64(0), r.Seq)
		case <-time.After(5 * time.Second):
			t.Fatal("tail did not deliver the live append")
		}
		require.NoError(t, s.Close(ctx, taskID))
	})
}
