package eventstore

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/a2aserver/a2a-core/a2a/codec"
	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// fileRecord is the on-disk shape of one log line: the dense sequence
// number, the event's kind (redundant with payload, kept for quick scanning
// without a full decode), the encoded event payload, and a millisecond
// timestamp, mirroring spec.md's EventLogRecord.
type fileRecord struct {
	Seq     uint64          `json:"seq"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	TSMs    int64           `json:"timestampMs"`
}

// FileStore is the file-backed EventStore: one append-only log file per task
// plus a sidecar sentinel file marking closure. Each process keeps an
// in-memory mirror (records + sync.Cond) of every task log it has touched,
// recovered from disk on first access, so TailFrom can block in-process the
// same way MemoryStore does; the file is the source of truth across restarts.
type FileStore struct {
	dir string

	mu    sync.Mutex
	tasks map[string]*memoryLog
}

// NewFileStore constructs a FileStore rooted at dir/events, creating it if
// absent.
func NewFileStore(dir string) (*FileStore, error) {
	eventsDir := filepath.Join(dir, "events")
	if err := os.MkdirAll(eventsDir, 0o755); err != nil {
		return nil, errs.Wrap(err, "creating event store directory")
	}
	return &FileStore{dir: eventsDir, tasks: make(map[string]*memoryLog)}, nil
}

var _ EventStore = (*FileStore)(nil)

func (s *FileStore) logPath(taskID string) string   { return filepath.Join(s.dir, taskID+".log") }
func (s *FileStore) closedPath(taskID string) string { return filepath.Join(s.dir, taskID+".closed") }

// logFor returns the in-memory mirror for taskID, recovering it from disk on
// first access: scanning the log file for existing records and checking for
// the closed sentinel.
func (s *FileStore) logFor(taskID string) (*memoryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.tasks[taskID]; ok {
		return l, nil
	}

	l := &memoryLog{cond: sync.NewCond(&sync.Mutex{})}
	records, err := s.recover(taskID)
	if err != nil {
		return nil, err
	}
	l.records = records
	if _, err := os.Stat(s.closedPath(taskID)); err == nil {
		l.closed = true
	}
	s.tasks[taskID] = l
	return l, nil
}

func (s *FileStore) recover(taskID string) ([]Record, error) {
	f, err := os.Open(s.logPath(taskID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "opening event log for recovery")
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var fr fileRecord
		if err := json.Unmarshal(line, &fr); err != nil {
			return nil, errs.Wrap(err, "decoding event log line")
		}
		event, err := codec.DecodeEvent(fr.Payload)
		if err != nil {
			return nil, errs.Wrap(err, "decoding recovered event payload")
		}
		records = append(records, Record{Seq: fr.Seq, Event: event})
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(err, "scanning event log")
	}
	return records, nil
}

// Append persists event to taskID's log file, fsyncs, then updates the
// in-memory mirror and wakes blocked tailers.
func (s *FileStore) Append(_ context.Context, taskID string, event types.Event) (uint64, error) {
	l, err := s.logFor(taskID)
	if err != nil {
		return 0, err
	}
	l.cond.L.Lock()
	defer l.cond.L.Unlock()
	if l.closed {
		return 0, errs.UnsupportedOperation("task %q event log is closed", taskID)
	}
	seq := uint64(len(l.records))

	payload, err := codec.EncodeEvent(event)
	if err != nil {
		return 0, errs.Wrap(err, "encoding event for append")
	}
	fr := fileRecord{Seq: seq, Kind: string(event.Kind), Payload: payload, TSMs: time.Now().UTC().UnixMilli()}
	line, err := json.Marshal(fr)
	if err != nil {
		return 0, errs.Wrap(err, "encoding event log line")
	}

	f, err := os.OpenFile(s.logPath(taskID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, errs.Wrap(err, "opening event log for append")
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return 0, errs.Wrap(err, "appending event log line")
	}
	if err := f.Sync(); err != nil {
		return 0, errs.Wrap(err, "syncing event log")
	}

	l.records = append(l.records, Record{Seq: seq, Event: event})
	l.cond.Broadcast()
	return seq, nil
}

// ReadAll returns a snapshot of taskID's log.
func (s *FileStore) ReadAll(_ context.Context, taskID string) ([]Record, error) {
	l, err := s.logFor(taskID)
	if err != nil {
		return nil, err
	}
	l.cond.L.Lock()
	defer l.cond.L.Unlock()
	return append([]Record(nil), l.records...), nil
}

// TailFrom streams records from fromSeq onward, blocking for new appends,
// identically to MemoryStore.TailFrom against the recovered in-memory
// mirror.
func (s *FileStore) TailFrom(ctx context.Context, taskID string, fromSeq uint64) (<-chan Record, <-chan error) {
	out := make(chan Record)
	errc := make(chan error, 1)

	l, err := s.logFor(taskID)
	if err != nil {
		go func() {
			errc <- err
			close(errc)
			close(out)
		}()
		return out, errc
	}

	go func() {
		defer close(out)
		defer close(errc)

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

// Close creates the sentinel file marking taskID's log closed, then wakes
// every blocked tailer. Idempotent: a second Close is a no-op.
func (s *FileStore) Close(_ context.Context, taskID string) error {
	l, err := s.logFor(taskID)
	if err != nil {
		return err
	}
	l.cond.L.Lock()
	defer l.cond.L.Unlock()
	if l.closed {
		return nil
	}
	f, err := os.OpenFile(s.closedPath(taskID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.Wrap(err, "creating closed sentinel")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.Wrap(err, "syncing closed sentinel")
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(err, "closing closed sentinel")
	}
	l.closed = true
	l.cond.Broadcast()
	return nil
}

// IsClosed reports whether taskID's log has been closed.
func (s *FileStore) IsClosed(_ context.Context, taskID string) (bool, error) {
	l, err := s.logFor(taskID)
	if err != nil {
		return false, err
	}
	l.cond.L.Lock()
	defer l.cond.L.Unlock()
	return l.closed, nil
}
