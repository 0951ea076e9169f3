package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/store"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// newTestTask builds a minimal, valid Task for use across backend
// conformance tests.
func newTestTask() types.Task {
	id := uuid.NewString()
	return types.Task{
		ID:        id,
		ContextID: "ctx-" + id,
		Status: types.TaskStatus{
			State:     types.TaskStateSubmitted,
			Timestamp: time.Now().UTC(),
		},
	}
}

// runTaskStoreConformance exercises the TaskStore contract shared by every
// backend. Each backend's own _test.go calls this with a fresh, empty store.
func runTaskStoreConformance(t *testing.T, s store.TaskStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing returns ok=false", func(t *testing.T) {
		_, ok, err := s.Get(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		task := newTestTask()
		require.NoError(t, s.Set(ctx, task))
		got, ok, err := s.Get(ctx, task.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, task.ContextID, got.ContextID)
		assert.Equal(t, task.Status.State, got.Status.State)
	})

	t.Run("update operations on unknown task fail with TaskNotFound", func(t *testing.T) {
		missing := uuid.NewString()
		_, err := s.UpdateStatus(ctx, missing, types.TaskStatus{State: types.TaskStateWorking})
		assert.True(t, errs.IsNotFound(err))

		_, err = s.AppendHistory(ctx, missing, types.Message{MessageID: uuid.NewString(), Role: types.RoleUser})
		assert.True(t, errs.IsNotFound(err))

		_, err = s.AppendOrReplaceArtifact(ctx, missing, types.Artifact{ArtifactID: uuid.NewString()}, false)
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("update status replaces the status snapshot", func(t *testing.T) {
		task := newTestTask()
		require.NoError(t, s.Set(ctx, task))
		next := types.TaskStatus{State: types.TaskStateWorking, Timestamp: time.Now().UTC()}
		updated, err := s.UpdateStatus(ctx, task.ID, next)
		require.NoError(t, err)
		assert.Equal(t, types.TaskStateWorking, updated.Status.State)

		got, _, err := s.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, types.TaskStateWorking, got.Status.State)
	})

	t.Run("append history accumulates in order", func(t *testing.T) {
		task := newTestTask()
		require.NoError(t, s.Set(ctx, task))
		m1 := types.Message{MessageID: "m1", Role: types.RoleUser}
		m2 := types.Message{MessageID: "m2", Role: types.RoleAgent}
		_, err := s.AppendHistory(ctx, task.ID, m1)
		require.NoError(t, err)
		updated, err := s.AppendHistory(ctx, task.ID, m2)
		require.NoError(t, err)
		require.Len(t, updated.History, 2)
		assert.Equal(t, "m1", updated.History[0].MessageID)
		assert.Equal(t, "m2", updated.History[1].MessageID)
	})

	t.Run("artifact without append replaces by ArtifactID", func(t *testing.T) {
		task := newTestTask()
		require.NoError(t, s.Set(ctx, task))
		a := types.Artifact{ArtifactID: "art-1", Name: "first", Parts: []types.Part{types.NewTextPart("v1")}}
		_, err := s.AppendOrReplaceArtifact(ctx, task.ID, a, false)
		require.NoError(t, err)

		a2 := types.Artifact{ArtifactID: "art-1", Name: "second", Parts: []types.Part{types.NewTextPart("v2")}}
		updated, err := s.AppendOrReplaceArtifact(ctx, task.ID, a2, false)
		require.NoError(t, err)
		require.Len(t, updated.Artifacts, 1)
		assert.Equal(t, "second", updated.Artifacts[0].Name)
		assert.Equal(t, "v2", updated.Artifacts[0].Parts[0].Text.Text)
	})

	t.Run("artifact with append concatenates parts for the same ArtifactID", func(t *testing.T) {
		task := newTestTask()
		require.NoError(t, s.Set(ctx, task))
		chunk1 := types.Artifact{ArtifactID: "art-2", Parts: []types.Part{types.NewTextPart("hello ")}}
		chunk2 := types.Artifact{ArtifactID: "art-2", Parts: []types.Part{types.NewTextPart("world")}}
		_, err := s.AppendOrReplaceArtifact(ctx, task.ID, chunk1, true)
		require.NoError(t, err)
		updated, err := s.AppendOrReplaceArtifact(ctx, task.ID, chunk2, true)
		require.NoError(t, err)
		require.Len(t, updated.Artifacts, 1)
		require.Len(t, updated.Artifacts[0].Parts, 2)
		assert.Equal(t, "hello ", updated.Artifacts[0].Parts[0].Text.Text)
		assert.Equal(t, "world", updated.Artifacts[0].Parts[1].Text.Text)
	})

	t.Run("list filters by context and paginates", func(t *testing.T) {
		ctxID := "shared-" + uuid.NewString()
		var ids []string
		for i := 0; i < 3; i++ {
			task := newTestTask()
			task.ContextID = ctxID
			require.NoError(t, s.Set(ctx, task))
			ids = append(ids, task.ID)
		}
		result, err := s.List(ctx, types.ListFilter{ContextID: ctxID})
		require.NoError(t, err)
		assert.Len(t, result.Tasks, 3)
		for _, task := range result.Tasks {
			assert.Equal(t, ctxID, task.ContextID)
		}

		first, err := s.List(ctx, types.ListFilter{ContextID: ctxID, PageSize: 2})
		require.NoError(t, err)
		assert.Len(t, first.Tasks, 2)
		assert.Equal(t, 3, first.TotalSize)
		require.NotEmpty(t, first.NextPageToken)
		second, err := s.List(ctx, types.ListFilter{ContextID: ctxID, PageSize: 2, PageToken: first.NextPageToken})
		require.NoError(t, err)
		assert.Len(t, second.Tasks, 1)
		assert.Empty(t, second.NextPageToken)
	})
}
