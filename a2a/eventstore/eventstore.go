// Package eventstore implements the Event Store (spec component C3): an
// append-only, gap-free, per-task event log with dense 0-based sequence
// numbers, readable from the start or tailed live from an arbitrary offset.
package eventstore

import (
	"context"

	"github.com/a2aserver/a2a-core/a2a/types"
)

// Record is a persisted event together with its position in the log.
type Record struct {
	// Seq is the dense, 0-based sequence number of this record within its
	// task's log.
	Seq uint64
	// Event is the decoded event payload.
	Event types.Event
}

// EventStore abstracts the per-task append-only event log. Implementations
// must guarantee: Append assigns sequence numbers densely and in order,
// persists before returning, and is safe to call concurrently for the same
// task (internally serialized); ReadAll and TailFrom never reorder or skip
// records; TailFrom unblocks every live caller once Close is called.
type EventStore interface {
	// Append persists event as the next record for taskID and returns its
	// assigned sequence number. Fails with errs.UnsupportedOperation if the
	// task's log is already closed.
	Append(ctx context.Context, taskID string, event types.Event) (seq uint64, err error)
	// ReadAll returns every record currently in the log, ordered by Seq. It is
	// a point-in-time snapshot: later appends are not reflected.
	ReadAll(ctx context.Context, taskID string) ([]Record, error)
	// TailFrom yields records from fromSeq onward, blocking for future
	// appends once it catches up, until the log closes or ctx is canceled.
	// Multiple concurrent tailers on the same task are independent.
	TailFrom(ctx context.Context, taskID string, fromSeq uint64) (<-chan Record, <-chan error)
	// Close marks taskID's log closed: no further Append calls succeed, and
	// every blocked or future TailFrom call for taskID unblocks. Idempotent.
	Close(ctx context.Context, taskID string) error
	// IsClosed reports whether taskID's log has been closed.
	IsClosed(ctx context.Context, taskID string) (bool, error)
}
