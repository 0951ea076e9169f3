// Package subscriber implements the Event Subscriber (spec component C4) as
// a single implementation built against the EventStore interface, shared by
// every backend rather than duplicated per backend, mirroring the teacher's
// Pulse Subscriber.Subscribe channel pattern.
package subscriber

import (
	"context"

	"github.com/a2aserver/a2a-core/a2a/eventstore"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// Subscriber tails a task's event log starting at a given sequence.
type Subscriber struct {
	store eventstore.EventStore
}

// New constructs a Subscriber over store.
func New(store eventstore.EventStore) *Subscriber {
	return &Subscriber{store: store}
}

// Subscribe returns a channel of events for taskID starting at fromSeq,
// terminating when the task's log closes or ctx is canceled. The returned
// error channel carries at most one error (for example, ctx.Err()).
func (s *Subscriber) Subscribe(ctx context.Context, taskID string, fromSeq uint64) (<-chan types.Event, <-chan error) {
	records, errc := s.store.TailFrom(ctx, taskID, fromSeq)
	out := make(chan types.Event)
	go func() {
		defer close(out)
		for r := range records {
			select {
			case out <- r.Event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc
}

// Replay returns every event currently logged for taskID, without blocking
// for future appends. ResubscribeTask does not call it: it uses Subscribe
// from seq 0, which on a closed log replays every record and then ends.
func (s *Subscriber) Replay(ctx context.Context, taskID string) ([]types.Event, error) {
	records, err := s.store.ReadAll(ctx, taskID)
	if err != nil {
		return nil, err
	}
	events := make([]types.Event, 0, len(records))
	for _, r := range records {
		events = append(events, r.Event)
	}
	return events, nil
}
