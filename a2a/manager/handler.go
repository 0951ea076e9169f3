package manager

import (
	"context"

	"github.com/a2aserver/a2a-core/a2a/types"
	"github.com/a2aserver/a2a-core/a2a/updater"
)

// AgentHandler is user-supplied business logic driven by the Task Manager.
// Execute is invoked once per SendMessage/SendMessageStream call, holding
// exclusive write access to the task via u; it must drive u to a terminal
// transition (Complete/Fail/Cancel) before returning. If it returns a
// non-nil error without having reached a terminal state, the Task Manager
// auto-fails the task with that error.
type AgentHandler interface {
	Execute(ctx context.Context, u *updater.TaskUpdater, msg types.Message) error
	// Cancel is invoked best-effort when CancelTask is called for a task this
	// handler is still executing. Implementations should use it to signal
	// internal cancellation (for example, cancelling a derived context or an
	// in-flight LLM call); errors are logged, not surfaced to the caller.
	Cancel(ctx context.Context, taskID string) error
}

// HandlerRunner abstracts how AgentHandler.Execute is actually executed,
// decoupling the Task Manager's synchronous contract from the execution
// substrate. InlineRunner (the default) runs the handler in the caller's
// goroutine. a2a/temporalexec.Runner runs it as a Temporal activity instead,
// without changing any TaskManager method signature.
type HandlerRunner interface {
	// Run executes handler against u and msg, and blocks until the handler
	// returns or ctx is done. If u has not reached a terminal transition when
	// Run returns, the Task Manager fails the task with Run's error.
	Run(ctx context.Context, handler AgentHandler, u *updater.TaskUpdater, msg types.Message) error
}
