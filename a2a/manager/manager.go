// Package manager implements the Task Manager (spec component C6): the
// orchestrator that routes requests to create or resume tasks, drives
// AgentHandler to completion, and exposes query/cancel/list/subscribe.
package manager

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/a2aserver/a2a-core/a2a/codec"
	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/eventstore"
	"github.com/a2aserver/a2a-core/a2a/internal/keyedmutex"
	"github.com/a2aserver/a2a-core/a2a/pushconfig"
	"github.com/a2aserver/a2a-core/a2a/store"
	"github.com/a2aserver/a2a-core/a2a/subscriber"
	"github.com/a2aserver/a2a-core/a2a/telemetry"
	"github.com/a2aserver/a2a-core/a2a/types"
	"github.com/a2aserver/a2a-core/a2a/updater"
)

// SendResult is the result of SendMessage: exactly one of Task or Message is
// set, mirroring spec.md's "Task | Message" result union.
type SendResult struct {
	Task    *types.Task
	Message *types.Message
}

// Options configures a TaskManager.
type Options struct {
	Tasks     store.TaskStore
	Events    eventstore.EventStore
	Push      pushconfig.Store
	Handler   AgentHandler
	Runner    HandlerRunner
	Telemetry telemetry.Telemetry
}

// TaskManager is the orchestrator described by spec.md section 4.6.
type TaskManager struct {
	tasks   store.TaskStore
	events  eventstore.EventStore
	push    pushconfig.Store
	handler AgentHandler
	runner  HandlerRunner
	sub     *subscriber.Subscriber
	locks   *keyedmutex.Map
	tel     telemetry.Telemetry
}

// New constructs a TaskManager. Runner defaults to InlineRunner when nil.
func New(opts Options) *TaskManager {
	runner := opts.Runner
	if runner == nil {
		runner = InlineRunner{}
	}
	return &TaskManager{
		tasks:   opts.Tasks,
		events:  opts.Events,
		push:    opts.Push,
		handler: opts.Handler,
		runner:  runner,
		sub:     subscriber.New(opts.Events),
		locks:   keyedmutex.New(),
		tel:     telemetry.Normalize(opts.Telemetry),
	}
}

// resolveTask opens the task identified by msg.TaskID, or creates a fresh
// one (assigning TaskID/ContextID if absent) when msg.TaskID is empty.
// Fails UnsupportedOperation if the referenced task is already terminal.
func (m *TaskManager) resolveTask(ctx context.Context, msg *types.Message) (types.Task, error) {
	if msg.TaskID == "" {
		if msg.ContextID == "" {
			msg.ContextID = uuid.NewString()
		}
		task := types.Task{
			ID:        uuid.NewString(),
			ContextID: msg.ContextID,
			Status:    types.TaskStatus{State: types.TaskStateSubmitted, Timestamp: time.Now().UTC()},
		}
		if err := m.tasks.Set(ctx, task); err != nil {
			return types.Task{}, err
		}
		if _, err := m.events.Append(ctx, task.ID, types.NewTaskEvent(task)); err != nil {
			return types.Task{}, err
		}
		m.tel.Metrics.IncCounter("a2a.tasks.created", 1)
		return task, nil
	}

	task, ok, err := m.tasks.Get(ctx, msg.TaskID)
	if err != nil {
		return types.Task{}, err
	}
	if !ok {
		return types.Task{}, errs.TaskNotFound(msg.TaskID)
	}
	if task.Status.State.IsTerminal() {
		return types.Task{}, errs.UnsupportedOperation("task %q is in terminal state %q", msg.TaskID, task.Status.State)
	}
	msg.ContextID = task.ContextID
	return task, nil
}

// validateParts runs schema validation on msg's Data parts, scoped to the
// message's context ID, per SPEC_FULL.md's supplemental Data part schema
// validation note.
func validateParts(msg types.Message) error {
	for _, p := range msg.Parts {
		if err := codec.ValidatePart(p, msg.ContextID); err != nil {
			return errs.InvalidParams("%v", err)
		}
	}
	return nil
}

// execute drives the configured AgentHandler for task via msg, ensuring the
// task reaches a terminal state before returning: a handler error, a handler
// return without reaching terminal, or a runner failure are all converted
// into an auto-Fail transition.
func (m *TaskManager) execute(ctx context.Context, task types.Task, msg types.Message) {
	u, err := updater.New(task.ID, task.ContextID, task.Status.State, m.tasks, m.events, m.locks)
	if err != nil {
		m.tel.Log.Error(ctx, "failed to acquire task updater", "taskId", task.ID, "error", err.Error())
		return
	}

	if _, err := m.tasks.AppendHistory(ctx, task.ID, msg); err != nil {
		m.tel.Log.Error(ctx, "failed to append history", "taskId", task.ID, "error", err.Error())
	}
	if _, err := m.events.Append(ctx, task.ID, types.NewMessageEvent(task.ID, task.ContextID, msg)); err != nil {
		m.tel.Log.Error(ctx, "failed to append message event", "taskId", task.ID, "error", err.Error())
	}

	runErr := m.runner.Run(ctx, m.handler, u, msg)

	current, ok, err := m.tasks.Get(ctx, task.ID)
	alreadyTerminal := err == nil && ok && current.Status.State.IsTerminal()
	if alreadyTerminal {
		u.Release()
		m.tel.Metrics.IncCounter("a2a.tasks.completed", 1, "state", string(current.Status.State))
		return
	}

	failMsg := types.Message{
		MessageID: uuid.NewString(),
		Role:      types.RoleAgent,
		Parts:     []types.Part{types.NewTextPart(autoFailReason(runErr))},
	}
	if failErr := u.Fail(ctx, failMsg); failErr != nil {
		m.tel.Log.Error(ctx, "auto-fail transition failed", "taskId", task.ID, "error", failErr.Error())
		u.Release()
	}
	m.tel.Metrics.IncCounter("a2a.tasks.completed", 1, "state", string(types.TaskStateFailed))
}

func autoFailReason(err error) string {
	if err != nil {
		return "agent handler failed: " + err.Error()
	}
	return "agent handler returned without reaching a terminal state"
}

// SendMessage implements message/send: resolves the task, runs the handler
// synchronously, and returns the final task snapshot.
func (m *TaskManager) SendMessage(ctx context.Context, msg types.Message) (SendResult, error) {
	ctx, span := m.tel.Trace.Start(ctx, "a2a.task_manager.send_message")
	defer span.End()

	task, err := m.resolveTask(ctx, &msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SendResult{}, err
	}
	span.AddEvent("task resolved", "taskId", task.ID)

	if err := validateParts(msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SendResult{}, err
	}

	m.execute(ctx, task, msg)

	final, ok, err := m.tasks.Get(ctx, task.ID)
	if err != nil {
		return SendResult{}, err
	}
	if !ok {
		return SendResult{}, errs.TaskNotFound(task.ID)
	}
	return SendResult{Task: &final}, nil
}

// SendMessageStream implements message/stream: resolves the task, starts the
// handler concurrently, and returns a subscription on the task's event log
// from seq 0. Canceling ctx stops the subscription without affecting the
// task or its handler.
func (m *TaskManager) SendMessageStream(ctx context.Context, msg types.Message) (<-chan types.Event, <-chan error, error) {
	ctx, span := m.tel.Trace.Start(ctx, "a2a.task_manager.send_message_stream")

	task, err := m.resolveTask(ctx, &msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, nil, err
	}

	if err := validateParts(msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, nil, err
	}

	go func() {
		defer span.End()
		m.execute(context.WithoutCancel(ctx), task, msg)
	}()

	m.tel.Metrics.IncCounter("a2a.subscribers.active", 1)
	events, errc := m.sub.Subscribe(ctx, task.ID, 0)
	return events, errc, nil
}

// GetTask implements tasks/get.
func (m *TaskManager) GetTask(ctx context.Context, id string, historyLength *int) (types.Task, error) {
	if historyLength != nil && *historyLength < 0 {
		return types.Task{}, errs.InvalidParams("historyLength must not be negative")
	}
	task, ok, err := m.tasks.Get(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if !ok {
		return types.Task{}, errs.TaskNotFound(id)
	}
	if historyLength != nil && len(task.History) > *historyLength {
		task.History = task.History[len(task.History)-*historyLength:]
	}
	return task, nil
}

// CancelTask implements tasks/cancel.
func (m *TaskManager) CancelTask(ctx context.Context, id string) (types.Task, error) {
	ctx, span := m.tel.Trace.Start(ctx, "a2a.task_manager.cancel_task")
	defer span.End()

	// Deliberately does not take the per-task write lock: a handler's
	// TaskUpdater may be live and blocked inside AgentHandler.Execute, and
	// CancelTask must be able to force a terminal transition without waiting
	// for it to return. The event log is the arbiter of "who won": Append is
	// attempted before UpdateStatus so a log already closed by a concurrent
	// terminal transition aborts the cancellation cleanly instead of
	// clobbering the task's real final status.
	task, ok, err := m.tasks.Get(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if !ok {
		return types.Task{}, errs.TaskNotFound(id)
	}
	if task.Status.State.IsTerminal() {
		return types.Task{}, errs.TaskNotCancelable(id, string(task.Status.State))
	}

	status := types.TaskStatus{State: types.TaskStateCanceled, Timestamp: time.Now().UTC()}
	if _, err := m.events.Append(ctx, id, types.NewStatusUpdateEvent(id, task.ContextID, status, true)); err != nil {
		if current, gotOk, getErr := m.tasks.Get(ctx, id); getErr == nil && gotOk {
			return types.Task{}, errs.TaskNotCancelable(id, string(current.Status.State))
		}
		return types.Task{}, err
	}
	updated, err := m.tasks.UpdateStatus(ctx, id, status)
	if err != nil {
		return types.Task{}, err
	}
	if err := m.events.Close(ctx, id); err != nil {
		m.tel.Log.Error(ctx, "failed to close event log on cancel", "taskId", id, "error", err.Error())
	}

	if err := m.handler.Cancel(ctx, id); err != nil {
		m.tel.Log.Warn(ctx, "agent handler cancel returned an error", "taskId", id, "error", err.Error())
	}
	m.tel.Metrics.IncCounter("a2a.tasks.completed", 1, "state", string(types.TaskStateCanceled))
	return updated, nil
}

// ListTasks implements tasks/list.
func (m *TaskManager) ListTasks(ctx context.Context, filter types.ListFilter) (types.ListResult, error) {
	return m.tasks.List(ctx, filter)
}

// ResubscribeTask implements tasks/resubscribe: replays the full history
// then tails live, or returns an already-drained replay if the log is
// closed.
func (m *TaskManager) ResubscribeTask(ctx context.Context, id string) (<-chan types.Event, <-chan error, error) {
	_, ok, err := m.tasks.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, errs.TaskNotFound(id)
	}
	m.tel.Metrics.IncCounter("a2a.subscribers.active", 1)
	events, errc := m.sub.Subscribe(ctx, id, 0)
	return events, errc, nil
}

// SetPushNotificationConfig implements tasks/pushNotificationConfig/set.
func (m *TaskManager) SetPushNotificationConfig(ctx context.Context, taskID string, config types.PushNotificationConfig) (types.PushNotificationConfig, error) {
	if _, ok, err := m.tasks.Get(ctx, taskID); err != nil {
		return types.PushNotificationConfig{}, err
	} else if !ok {
		return types.PushNotificationConfig{}, errs.TaskNotFound(taskID)
	}
	return m.push.Set(ctx, taskID, config)
}

// ListPushNotificationConfig returns every push-notification config stored
// for taskID.
func (m *TaskManager) ListPushNotificationConfig(ctx context.Context, taskID string) ([]types.PushNotificationConfig, error) {
	return m.push.List(ctx, taskID)
}

// GetPushNotificationConfig implements tasks/pushNotificationConfig/get's
// single-config lookup (params.pushNotificationConfigId set).
func (m *TaskManager) GetPushNotificationConfig(ctx context.Context, taskID, id string) (types.PushNotificationConfig, bool, error) {
	return m.push.Get(ctx, taskID, id)
}
