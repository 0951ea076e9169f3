package eventstore

import (
	"context"
	"sync"

	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// MemoryStore is the in-memory EventStore reference implementation: a slice
// of records per task, guarded by a mutex, with a sync.Cond used to wake
// blocked TailFrom callers on Append and on Close.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*memoryLog
}

type memoryLog struct {
	cond    *sync.Cond
	records []Record
	closed  bool
}

// NewMemoryStore constructs an empty in-memory EventStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*memoryLog)}
}

var _ EventStore = (*MemoryStore)(nil)

func (s *MemoryStore) logFor(taskID string) *memoryLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.tasks[taskID]
	if !ok {
		l = &memoryLog{cond: sync.NewCond(&sync.Mutex{})}
		s.tasks[taskID] = l
	}
	return l
}

// Append appends event to taskID's log and returns its assigned sequence.
func (s *MemoryStore) Append(_ context.Context, taskID string, event types.Event) (uint64, error) {
	l := s.logFor(taskID)
	l.cond.L.Lock()
	defer l.cond.L.Unlock()
	if l.closed {
		return 0, errs.UnsupportedOperation("task %q event log is closed", taskID)
	}
	seq := uint64(len(l.records))
	l.records = append(l.records, Record{Seq: seq, Event: event})
	l.cond.Broadcast()
	return seq, nil
}

// ReadAll returns a snapshot of taskID's log.
func (s *MemoryStore) ReadAll(_ context.Context, taskID string) ([]Record, error) {
	l := s.logFor(taskID)
	l.cond.L.Lock()
	defer l.cond.L.Unlock()
	return append([]Record(nil), l.records...), nil
}

// TailFrom streams records from fromSeq onward, blocking for new appends.
func (s *MemoryStore) TailFrom(ctx context.Context, taskID string, fromSeq uint64) (<-chan Record, <-chan error) {
	out := make(chan Record)
	errc := make(chan error, 1)
	l := s.logFor(taskID)

	go func() {
		defer close(out)
		defer close(errc)

		// A goroutine that only watches ctx/closure so the Cond.Wait loop
		// below can be interrupted promptly: sync.Cond has no native
		// context support, so a Broadcast on cancellation nudges it awake.
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				l.cond.L.Lock()
				l.cond.Broadcast()
				l.cond.L.Unlock()
			case <-done:
			}
		}()

		next := fromSeq
		for {
			l.cond.L.Lock()
			for uint64(len(l.records)) <= next && !l.closed && ctx.Err() == nil {
				l.cond.Wait()
			}
			if ctx.Err() != nil {
				l.cond.L.Unlock()
				errc <- ctx.Err()
				return
			}
			if uint64(len(l.records)) <= next && l.closed {
				l.cond.L.Unlock()
				return
			}
			batch := append([]Record(nil), l.records[next:]...)
			l.cond.L.Unlock()

			for _, r := range batch {
				select {
				case out <- r:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			next += uint64(len(batch))
		}
	}()

	return out, errc
}

// Close marks taskID's log closed and wakes every blocked tailer.
func (s *MemoryStore) Close(_ context.Context, taskID string) error {
	l := s.logFor(taskID)
	l.cond.L.Lock()
	defer l.cond.L.Unlock()
	l.closed = true
	l.cond.Broadcast()
	return nil
}

// IsClosed reports whether taskID's log has been closed.
func (s *MemoryStore) IsClosed(_ context.Context, taskID string) (bool, error) {
	l := s.logFor(taskID)
	l.cond.L.Lock()
	defer l.cond.L.Unlock()
	return l.closed, nil
}
