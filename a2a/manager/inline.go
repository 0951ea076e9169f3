package manager

import (
	"context"
	"fmt"

	"github.com/a2aserver/a2a-core/a2a/types"
	"github.com/a2aserver/a2a-core/a2a/updater"
)

// InlineRunner runs AgentHandler.Execute directly in the same process, which
// is the execution model spec.md describes directly. It recovers a panicking
// handler into an error; the Task Manager then converts that error into a
// Fail transition, so a misbehaving handler can never leave a task's event
// log open forever.
type InlineRunner struct{}

var _ HandlerRunner = InlineRunner{}

// Run executes handler.Execute(ctx, u, msg) synchronously in the caller's
// goroutine, matching spec.md's "invoke AgentHandler.Execute synchronously"
// wording for SendMessage; SendMessageStream's concurrency comes from the
// Task Manager calling Run in its own goroutine, not from Run itself.
func (InlineRunner) Run(ctx context.Context, handler AgentHandler, u *updater.TaskUpdater, msg types.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent handler panicked: %v", r)
		}
	}()
	return handler.Execute(ctx, u, msg)
}
