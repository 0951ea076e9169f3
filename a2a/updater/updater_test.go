package updater_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/eventstore"
	"github.com/a2aserver/a2a-core/a2a/internal/keyedmutex"
	"github.com/a2aserver/a2a-core/a2a/store"
	"github.com/a2aserver/a2a-core/a2a/types"
	"github.com/a2aserver/a2a-core/a2a/updater"
)

type harness struct {
	tasks  *store.MemoryStore
	events *eventstore.MemoryStore
	locks  *keyedmutex.Map
}

func newHarness(t *testing.T, taskID string) *harness {
	t.Helper()
	h := &harness{tasks: store.NewMemoryStore(), events: eventstore.NewMemoryStore(), locks: keyedmutex.New()}
	require.NoError(t, h.tasks.Set(context.Background(), types.Task{
		ID:     taskID,
		Status: types.TaskStatus{State: types.TaskStateSubmitted},
	}))
	return h
}

func TestHappyPathCompletesAndClosesLog(t *testing.T) {
	ctx := context.Background()
	taskID := uuid.NewString()
	h := newHarness(t, taskID)

	u, err := updater.New(taskID, "ctx-1", types.TaskStateSubmitted, h.tasks, h.events, h.locks)
	require.NoError(t, err)

	require.NoError(t, u.StartWork(ctx))
	require.NoError(t, u.ReturnArtifact(ctx, types.Artifact{ArtifactID: "a1", Parts: []types.Part{types.NewTextPart("hi")}}, false, true))
	require.NoError(t, u.Complete(ctx, nil))

	task, ok, err := h.tasks.Get(ctx, taskID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)

	closed, err := h.events.IsClosed(ctx, taskID)
	require.NoError(t, err)
	assert.True(t, closed)

	// Lock released: a new updater can now be created for this task.
	_, err = updater.New(taskID, "ctx-1", types.TaskStateCompleted, h.tasks, h.events, h.locks)
	assert.NoError(t, err)
}

func TestTerminalToNonTerminalTransitionRejected(t *testing.T) {
	ctx := context.Background()
	taskID := uuid.NewString()
	h := newHarness(t, taskID)

	u, err := updater.New(taskID, "", types.TaskStateSubmitted, h.tasks, h.events, h.locks)
	require.NoError(t, err)
	require.NoError(t, u.Cancel(ctx))

	err = u.StartWork(ctx)
	assert.True(t, errs.IsUnsupportedOperation(err))
}

func TestSecondUpdaterForSameTaskRejected(t *testing.T) {
	taskID := uuid.NewString()
	h := newHarness(t, taskID)

	_, err := updater.New(taskID, "", types.TaskStateSubmitted, h.tasks, h.events, h.locks)
	require.NoError(t, err)

	_, err = updater.New(taskID, "", types.TaskStateSubmitted, h.tasks, h.events, h.locks)
	assert.Error(t, err)
}

func TestTimestampsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	taskID := uuid.NewString()
	h := newHarness(t, taskID)

	u, err := updater.New(taskID, "", types.TaskStateSubmitted, h.tasks, h.events, h.locks)
	require.NoError(t, err)
	require.NoError(t, u.StartWork(ctx))
	require.NoError(t, u.RequireInput(ctx, types.Message{MessageID: "prompt", Role: types.RoleAgent}))

	records, err := h.events.ReadAll(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	first := records[0].Event.Status.Status.Timestamp
	second := records[1].Event.Status.Status.Timestamp
	assert.True(t, second.After(first))
}
