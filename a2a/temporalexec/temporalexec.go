// Package temporalexec is a supplemental manager.HandlerRunner that executes
// AgentHandler.Execute as a Temporal activity inside a per-task workflow
// instead of calling it directly in the caller's goroutine.
//
// Limitation, stated plainly: AgentHandler and *updater.TaskUpdater are live
// Go values, not JSON-serializable Temporal activity arguments, so this
// Runner only works against a Worker registered in the same process that
// calls Run - the workflow/activity pair look the live handler and updater
// up from an in-process registry keyed by TaskId rather than receiving them
// as activity input. This buys retry/timeout policy and workflow history
// durability within one process's lifetime; it does not buy true
// cross-process resumability, which would require AgentHandler itself to be
// expressed as data (a capability spec.md does not ask for).
package temporalexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/a2aserver/a2a-core/a2a/manager"
	"github.com/a2aserver/a2a-core/a2a/types"
	"github.com/a2aserver/a2a-core/a2a/updater"
)

const (
	// WorkflowName is the registered name of the per-task execution workflow.
	WorkflowName = "a2a.ExecuteHandler"
	// ActivityName is the registered name of the handler-invoking activity.
	ActivityName = "a2a.RunHandler"
)

// Runner implements manager.HandlerRunner by delegating to a Temporal
// workflow.
type Runner struct {
	client    client.Client
	taskQueue string
	reg       *registry
}

var _ manager.HandlerRunner = (*Runner)(nil)

// New constructs a Runner that starts workflows on taskQueue using c.
func New(c client.Client, taskQueue string) *Runner {
	return &Runner{client: c, taskQueue: taskQueue, reg: newRegistry()}
}

// RegisterWith registers this Runner's workflow and activity on w. Must be
// called before w is started, on a worker in the same process that calls Run:
// the activity finds the live handler only in this process's registry.
func (r *Runner) RegisterWith(w worker.Worker) {
	w.RegisterWorkflowWithOptions(executeHandlerWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(r.reg.runHandlerActivity, activity.RegisterOptions{Name: ActivityName})
}

// executionRequest is the (fully serializable) workflow/activity input: just
// enough to look the live handler/updater up from the registry plus the
// message being delivered.
type executionRequest struct {
	TaskID string
}

// Run starts (or resumes) a workflow for u.TaskID(), registers the live
// handler/updater/msg in the local registry under that id, and blocks until
// the workflow - and therefore handler.Execute - completes.
func (r *Runner) Run(ctx context.Context, handler manager.AgentHandler, u *updater.TaskUpdater, msg types.Message) error {
	token := r.reg.put(u.TaskID(), handler, u, msg)
	defer r.reg.delete(u.TaskID(), token)

	run, err := r.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "a2a-task-" + u.TaskID(),
		TaskQueue: r.taskQueue,
	}, executeHandlerWorkflow, executionRequest{TaskID: u.TaskID()})
	if err != nil {
		return fmt.Errorf("starting execution workflow: %w", err)
	}
	return run.Get(ctx, nil)
}

// executeHandlerWorkflow is the per-task workflow: a single activity
// invocation with a generous start-to-close timeout, since AgentHandler
// implementations may run long user code.
func executeHandlerWorkflow(ctx workflow.Context, req executionRequest) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	return workflow.ExecuteActivity(ctx, ActivityName, req).Get(ctx, nil)
}

// registry holds live (handler, updater, msg) triples keyed by task id, so
// the activity - which only receives the serializable executionRequest -
// can recover them.
type registry struct {
	mu      sync.Mutex
	entries map[string]registryEntry
}

type registryEntry struct {
	handler manager.AgentHandler
	updater *updater.TaskUpdater
	msg     types.Message
}

func newRegistry() *registry { return &registry{entries: make(map[string]registryEntry)} }

func (r *registry) put(taskID string, handler manager.AgentHandler, u *updater.TaskUpdater, msg types.Message) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[taskID] = registryEntry{handler: handler, updater: u, msg: msg}
	return taskID
}

func (r *registry) delete(taskID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[taskID]; ok && token == taskID {
		delete(r.entries, taskID)
	}
}

func (r *registry) get(taskID string) (registryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[taskID]
	return e, ok
}

// runHandlerActivity recovers the live entry for req.TaskID and invokes
// AgentHandler.Execute, recovering a panic into an error exactly like
// manager.InlineRunner does, so the same auto-Fail contract holds regardless
// of execution strategy.
func (r *registry) runHandlerActivity(ctx context.Context, req executionRequest) (err error) {
	entry, ok := r.get(req.TaskID)
	if !ok {
		return fmt.Errorf("temporalexec: no registered execution for task %q on this worker", req.TaskID)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("agent handler panicked: %v", p)
		}
	}()
	return entry.handler.Execute(ctx, entry.updater, entry.msg)
}
