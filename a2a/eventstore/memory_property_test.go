package eventstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/a2aserver/a2a-core/a2a/eventstore"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// TestAppendAssignsDenseGapFreeSequence verifies the Event Store's central
// invariant: for any number of appends to one task's log, ReadAll returns
// records whose Seq values are exactly 0..n-1 in order, regardless of how
// many events were appended.
func TestAppendAssignsDenseGapFreeSequence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("append assigns dense 0-based sequence numbers", prop.ForAll(
		func(n int) bool {
			store := eventstore.NewMemoryStore()
			ctx := context.Background()
			const taskID = "task-prop"

			for i := 0; i < n; i++ {
				seq, err := store.Append(ctx, taskID, statusEvent(taskID))
				if err != nil || seq != uint64(i) {
					return false
				}
			}

			records, err := store.ReadAll(ctx, taskID)
			if err != nil || len(records) != n {
				return false
			}
			for i, r := range records {
				if r.Seq != uint64(i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

func statusEvent(taskID string) types.Event {
	return types.NewStatusUpdateEvent(taskID, "ctx", types.TaskStatus{
		State:     types.TaskStateWorking,
		Timestamp: time.Now().UTC(),
	}, false)
}
