package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"

	"github.com/a2aserver/a2a-core/a2a/codec"
	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// closedEventKind is the sentinel "kind" Close publishes to a task's stream.
// TailFrom recognizes it and stops, the Redis-backed analogue of the file
// backend's sidecar ".closed" sentinel file.
const closedEventKind = "_closed"

// pulseRecord is the JSON payload published to the Pulse stream for each
// event: the dense, process-assigned seq alongside the encoded event.
type pulseRecord struct {
	Seq     uint64          `json:"seq"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// PulseStore is the supplemental, distributed Event Store backend: each
// task's log is a Redis stream (via goa.design/pulse/streaming), with a
// dense per-task sequence counter maintained separately because raw Redis
// stream IDs are time-based, not dense. A per-task Redis lock (SETNX with a
// short TTL) guards the increment-then-publish sequence so a second writer
// racing the same task is detected rather than silently corrupting the
// sequence, even though the protocol's single-writer-per-task rule means
// this should never trigger in normal operation.
type PulseStore struct {
	redis *redis.Client

	mu      sync.Mutex
	streams map[string]*streaming.Stream
}

// NewPulseStore constructs a PulseStore backed by client.
func NewPulseStore(client *redis.Client) *PulseStore {
	return &PulseStore{redis: client, streams: make(map[string]*streaming.Stream)}
}

var _ EventStore = (*PulseStore)(nil)

func (s *PulseStore) streamName(taskID string) string { return "a2a:events:" + taskID }
func (s *PulseStore) seqKey(taskID string) string     { return "a2a:seq:" + taskID }
func (s *PulseStore) lockKey(taskID string) string     { return "a2a:seqlock:" + taskID }

func (s *PulseStore) stream(taskID string) (*streaming.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if str, ok := s.streams[taskID]; ok {
		return str, nil
	}
	str, err := streaming.NewStream(s.streamName(taskID), s.redis)
	if err != nil {
		return nil, errs.Wrap(err, "opening pulse stream")
	}
	s.streams[taskID] = str
	return str, nil
}

// Append acquires the per-task sequence lock, increments the dense counter,
// publishes the event to the task's stream, then releases the lock.
func (s *PulseStore) Append(ctx context.Context, taskID string, event types.Event) (uint64, error) {
	closed, err := s.IsClosed(ctx, taskID)
	if err != nil {
		return 0, err
	}
	if closed {
		return 0, errs.UnsupportedOperation("task %q event log is closed", taskID)
	}

	acquired, err := s.redis.SetNX(ctx, s.lockKey(taskID), "1", 5*time.Second).Result()
	if err != nil {
		return 0, errs.Wrap(err, "acquiring sequence lock")
	}
	if !acquired {
		return 0, errs.Wrap(nil, fmt.Sprintf("concurrent writer detected for task %q", taskID))
	}
	defer s.redis.Del(ctx, s.lockKey(taskID))

	next, err := s.redis.Incr(ctx, s.seqKey(taskID)).Result()
	if err != nil {
		return 0, errs.Wrap(err, "incrementing sequence counter")
	}
	seq := uint64(next - 1)

	payload, err := codec.EncodeEvent(event)
	if err != nil {
		return 0, errs.Wrap(err, "encoding event")
	}
	rec := pulseRecord{Seq: seq, Kind: string(event.Kind), Payload: payload}
	body, err := json.Marshal(rec)
	if err != nil {
		return 0, errs.Wrap(err, "encoding pulse record")
	}

	str, err := s.stream(taskID)
	if err != nil {
		return 0, err
	}
	if _, err := str.Add(ctx, "event", body); err != nil {
		return 0, errs.Wrap(err, "publishing event to pulse stream")
	}
	return seq, nil
}

// readFrom drains the task's stream from the beginning using a fresh,
// uniquely-named consumer group, returning once no further entries arrive
// within a short grace window. Each call uses its own group so it observes
// the full history regardless of what other sinks have already acked.
func (s *PulseStore) readFrom(ctx context.Context, taskID string) ([]Record, bool, error) {
	str, err := s.stream(taskID)
	if err != nil {
		return nil, false, err
	}
	groupName := fmt.Sprintf("a2a-scan-%d", time.Now().UnixNano())
	sink, err := str.NewSink(ctx, groupName)
	if err != nil {
		return nil, false, errs.Wrap(err, "opening pulse scan sink")
	}
	defer sink.Close(context.Background())

	var records []Record
	closed := false
	ch := sink.Subscribe()
	grace := time.NewTimer(500 * time.Millisecond)
	defer grace.Stop()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return records, closed, nil
			}
			var rec pulseRecord
			if err := json.Unmarshal(evt.Payload, &rec); err != nil {
				return nil, false, errs.Wrap(err, "decoding pulse record")
			}
			if rec.Kind == closedEventKind {
				closed = true
				_ = sink.Ack(ctx, evt)
				continue
			}
			event, err := codec.DecodeEvent(rec.Payload)
			if err != nil {
				return nil, false, errs.Wrap(err, "decoding event payload")
			}
			records = append(records, Record{Seq: rec.Seq, Event: event})
			_ = sink.Ack(ctx, evt)
			if !grace.Stop() {
				<-grace.C
			}
			grace.Reset(500 * time.Millisecond)
		case <-grace.C:
			return records, closed, nil
		case <-ctx.Done():
			return records, closed, ctx.Err()
		}
	}
}

// ReadAll returns every record currently published for taskID.
func (s *PulseStore) ReadAll(ctx context.Context, taskID string) ([]Record, error) {
	records, _, err := s.readFrom(ctx, taskID)
	return records, err
}

// TailFrom streams records for taskID from fromSeq onward, blocking for
// future appends via a long-lived consumer group sink, and stopping when the
// _closed sentinel record is observed or ctx is canceled.
func (s *PulseStore) TailFrom(ctx context.Context, taskID string, fromSeq uint64) (<-chan Record, <-chan error) {
	out := make(chan Record)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		str, err := s.stream(taskID)
		if err != nil {
			errc <- err
			return
		}
		groupName := fmt.Sprintf("a2a-tail-%d", time.Now().UnixNano())
		sink, err := str.NewSink(ctx, groupName)
		if err != nil {
			errc <- errs.Wrap(err, "opening pulse tail sink")
			return
		}
		defer sink.Close(context.Background())

		ch := sink.Subscribe()
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				var rec pulseRecord
				if err := json.Unmarshal(evt.Payload, &rec); err != nil {
					errc <- errs.Wrap(err, "decoding pulse record")
					return
				}
				if rec.Kind == closedEventKind {
					_ = sink.Ack(ctx, evt)
					return
				}
				if rec.Seq < fromSeq {
					_ = sink.Ack(ctx, evt)
					continue
				}
				event, err := codec.DecodeEvent(rec.Payload)
				if err != nil {
					errc <- errs.Wrap(err, "decoding event payload")
					return
				}
				select {
				case out <- Record{Seq: rec.Seq, Event: event}:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
				_ = sink.Ack(ctx, evt)
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return out, errc
}

// Close publishes the _closed sentinel record, which every live and future
// TailFrom consumer group recognizes and stops on.
func (s *PulseStore) Close(ctx context.Context, taskID string) error {
	str, err := s.stream(taskID)
	if err != nil {
		return err
	}
	rec := pulseRecord{Kind: closedEventKind}
	body, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(err, "encoding close sentinel")
	}
	if _, err := str.Add(ctx, "event", body); err != nil {
		return errs.Wrap(err, "publishing close sentinel")
	}
	return s.redis.Set(ctx, s.streamName(taskID)+":closed", "1", 0).Err()
}

// IsClosed reports whether Close has been called for taskID.
func (s *PulseStore) IsClosed(ctx context.Context, taskID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.streamName(taskID)+":closed").Result()
	if err != nil {
		return false, errs.Wrap(err, "checking closed marker")
	}
	return n > 0, nil
}
