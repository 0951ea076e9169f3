// Package updater implements the Task Updater (spec component C5): the
// handler-facing helper that enforces the task state machine and is the
// sole producer of events for a task, one operation at a time.
package updater

import (
	"context"
	"sync"
	"time"

	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/eventstore"
	"github.com/a2aserver/a2a-core/a2a/internal/keyedmutex"
	"github.com/a2aserver/a2a-core/a2a/store"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// transitions is the closed set of allowed state changes. A state absent
// from this map (the terminal states) permits no further transition.
var transitions = map[types.TaskState]map[types.TaskState]bool{
	types.TaskStateSubmitted: set(
		types.TaskStateWorking, types.TaskStateInputRequired, types.TaskStateAuthRequired,
		types.TaskStateCompleted, types.TaskStateFailed, types.TaskStateCanceled, types.TaskStateRejected,
	),
	types.TaskStateWorking: set(
		types.TaskStateWorking, types.TaskStateInputRequired, types.TaskStateAuthRequired,
		types.TaskStateCompleted, types.TaskStateFailed, types.TaskStateCanceled,
	),
	types.TaskStateInputRequired: set(
		types.TaskStateWorking, types.TaskStateCompleted, types.TaskStateFailed, types.TaskStateCanceled,
	),
	types.TaskStateAuthRequired: set(
		types.TaskStateWorking, types.TaskStateCompleted, types.TaskStateFailed, types.TaskStateCanceled,
	),
}

func set(states ...types.TaskState) map[types.TaskState]bool {
	m := make(map[types.TaskState]bool, len(states))
	for _, s := range states {
		m[s] = true
	}
	return m
}

// TaskUpdater is a single-use, single-writer handle on one task's status and
// event stream, held exclusively for the lifetime of one AgentHandler.Execute
// invocation.
type TaskUpdater struct {
	taskID    string
	contextID string
	tasks     store.TaskStore
	events    eventstore.EventStore

	mu            sync.Mutex
	state         types.TaskState
	lastTimestamp time.Time
	released      bool
	unlock        func()
}

// New constructs a TaskUpdater for taskID, starting from initialState, and
// acquires the per-task write lock from locks. It fails if another updater
// already holds that lock, per spec.md's "per-task single writer" invariant:
// a second live updater for the same task is a misuse, not a race to paper
// over.
func New(taskID, contextID string, initialState types.TaskState, tasks store.TaskStore, events eventstore.EventStore, locks *keyedmutex.Map) (*TaskUpdater, error) {
	unlock, ok := locks.TryLock(taskID)
	if !ok {
		return nil, errs.Wrap(nil, "task "+taskID+" already has an active updater")
	}
	return &TaskUpdater{
		taskID:    taskID,
		contextID: contextID,
		tasks:     tasks,
		events:    events,
		state:     initialState,
		unlock:    unlock,
	}, nil
}

// TaskID returns the task this updater is writing to.
func (u *TaskUpdater) TaskID() string { return u.taskID }

// nextTimestamp returns a UTC, millisecond-resolution timestamp guaranteed
// strictly greater than the previous one returned, per spec.md's monotonic
// timestamp guarantee.
func (u *TaskUpdater) nextTimestamp() time.Time {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if !now.After(u.lastTimestamp) {
		now = u.lastTimestamp.Add(time.Millisecond)
	}
	u.lastTimestamp = now
	return now
}

func (u *TaskUpdater) transition(ctx context.Context, next types.TaskState, message *types.Message, final bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.released {
		return errs.UnsupportedOperation("task %q updater already closed", u.taskID)
	}
	allowed, ok := transitions[u.state]
	if !ok || !allowed[next] {
		return errs.UnsupportedOperation("task %q cannot transition from %q to %q", u.taskID, u.state, next)
	}

	status := types.TaskStatus{State: next, Message: message, Timestamp: u.nextTimestamp()}
	// Append before UpdateStatus: if the log was already closed out from under
	// this updater (for example, CancelTask forcing a terminal transition
	// concurrently), this fails first and the task's store record is never
	// clobbered with a stale status.
	if _, err := u.events.Append(ctx, u.taskID, types.NewStatusUpdateEvent(u.taskID, u.contextID, status, final)); err != nil {
		return err
	}
	if _, err := u.tasks.UpdateStatus(ctx, u.taskID, status); err != nil {
		return err
	}
	u.state = next

	if final {
		if err := u.events.Close(ctx, u.taskID); err != nil {
			return err
		}
		u.released = true
		u.unlock()
	}
	return nil
}

// Submit records the task as Submitted. Not a final event.
func (u *TaskUpdater) Submit(ctx context.Context) error {
	return u.transition(ctx, types.TaskStateSubmitted, nil, false)
}

// StartWork transitions the task to Working.
func (u *TaskUpdater) StartWork(ctx context.Context) error {
	return u.transition(ctx, types.TaskStateWorking, nil, false)
}

// RequireInput transitions the task to InputRequired, carrying the prompt
// message the caller should respond to.
func (u *TaskUpdater) RequireInput(ctx context.Context, message types.Message) error {
	return u.transition(ctx, types.TaskStateInputRequired, &message, false)
}

// RequireAuth transitions the task to AuthRequired.
func (u *TaskUpdater) RequireAuth(ctx context.Context, message types.Message) error {
	return u.transition(ctx, types.TaskStateAuthRequired, &message, false)
}

// ReturnArtifact applies an artifact update to the task's store record and
// emits the corresponding artifact-update event. It does not change task
// status and is valid in any non-terminal state.
func (u *TaskUpdater) ReturnArtifact(ctx context.Context, artifact types.Artifact, appendChunk, lastChunk bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.released {
		return errs.UnsupportedOperation("task %q updater already closed", u.taskID)
	}
	if _, ok := transitions[u.state]; !ok {
		return errs.UnsupportedOperation("task %q is in terminal state %q", u.taskID, u.state)
	}
	if _, err := u.tasks.AppendOrReplaceArtifact(ctx, u.taskID, artifact, appendChunk); err != nil {
		return err
	}
	_, err := u.events.Append(ctx, u.taskID, types.NewArtifactUpdateEvent(u.taskID, u.contextID, artifact, appendChunk, lastChunk))
	return err
}

// Complete transitions the task to Completed, emits a final event, and
// closes the task's event log.
func (u *TaskUpdater) Complete(ctx context.Context, message *types.Message) error {
	return u.transition(ctx, types.TaskStateCompleted, message, true)
}

// Fail transitions the task to Failed, emits a final event carrying reason,
// and closes the task's event log.
func (u *TaskUpdater) Fail(ctx context.Context, reason types.Message) error {
	return u.transition(ctx, types.TaskStateFailed, &reason, true)
}

// Cancel transitions the task to Canceled, emits a final event, and closes
// the task's event log.
func (u *TaskUpdater) Cancel(ctx context.Context) error {
	return u.transition(ctx, types.TaskStateCanceled, nil, true)
}

// Release releases the per-task write lock without emitting a final event,
// for use when no terminal transition will be made through this updater (the
// Task Manager calls it when the task is already terminal, for example after
// CancelTask, or when its auto-fail transition itself fails). Safe to call
// after a terminal transition has already released the lock.
func (u *TaskUpdater) Release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.released {
		return
	}
	u.released = true
	u.unlock()
}
