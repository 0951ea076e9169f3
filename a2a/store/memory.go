package store

import (
	"context"
	"sort"
	"sync"

	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// MemoryStore is the in-memory TaskStore reference implementation. It is
// safe for concurrent use: writes are serialized per task via a per-task
// lock, mirroring the teacher's inMemoryTaskStore idiom, while reads take a
// consistent snapshot under the same lock so callers never observe a
// partially-applied mutation.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*taskEntry
}

type taskEntry struct {
	mu   sync.Mutex
	task types.Task
}

// NewMemoryStore constructs an empty in-memory TaskStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*taskEntry)}
}

var _ TaskStore = (*MemoryStore)(nil)

func (s *MemoryStore) entry(id string, create bool) (*taskEntry, bool) {
	s.mu.RLock()
	e, ok := s.tasks[id]
	s.mu.RUnlock()
	if ok || !create {
		return e, ok
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.tasks[id]; ok {
		return e, true
	}
	e = &taskEntry{}
	s.tasks[id] = e
	return e, false
}

// Get returns a copy of the stored task for id.
func (s *MemoryStore) Get(_ context.Context, id string) (types.Task, bool, error) {
	e, ok := s.entry(id, false)
	if !ok {
		return types.Task{}, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneTask(e.task), true, nil
}

// Set upserts task.
func (s *MemoryStore) Set(_ context.Context, task types.Task) error {
	e, _ := s.entry(task.ID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.task = cloneTask(task)
	return nil
}

// UpdateStatus replaces the status of the task identified by id.
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status types.TaskStatus) (types.Task, error) {
	e, ok := s.entry(id, false)
	if !ok {
		return types.Task{}, errs.TaskNotFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.task.Status = status
	return cloneTask(e.task), nil
}

// AppendHistory appends msg to the task's history.
func (s *MemoryStore) AppendHistory(_ context.Context, id string, msg types.Message) (types.Task, error) {
	e, ok := s.entry(id, false)
	if !ok {
		return types.Task{}, errs.TaskNotFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.task.History = append(e.task.History, msg)
	return cloneTask(e.task), nil
}

// AppendOrReplaceArtifact applies an artifact update to the task.
func (s *MemoryStore) AppendOrReplaceArtifact(_ context.Context, id string, artifact types.Artifact, appendChunk bool) (types.Task, error) {
	e, ok := s.entry(id, false)
	if !ok {
		return types.Task{}, errs.TaskNotFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.task.Artifacts = applyArtifact(e.task.Artifacts, artifact, appendChunk)
	return cloneTask(e.task), nil
}

// List returns tasks matching filter, sorted by ID for stable pagination.
func (s *MemoryStore) List(_ context.Context, filter types.ListFilter) (types.ListResult, error) {
	s.mu.RLock()
	all := make([]types.Task, 0, len(s.tasks))
	for _, e := range s.tasks {
		e.mu.Lock()
		t := cloneTask(e.task)
		e.mu.Unlock()
		if filter.ContextID != "" && t.ContextID != filter.ContextID {
			continue
		}
		all = append(all, t)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, filter)
}

// paginate applies PageSize/PageToken over an already-filtered, stably
// ordered slice, shared by every backend, each of which materializes the
// full filtered set before slicing (memory, file, Redis).
func paginate(all []types.Task, filter types.ListFilter) (types.ListResult, error) {
	start := 0
	if filter.PageToken != "" {
		for i, t := range all {
			if t.ID == filter.PageToken {
				start = i
				break
			}
		}
	}
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if filter.PageSize > 0 && start+filter.PageSize < end {
		end = start + filter.PageSize
	}
	page := all[start:end]
	result := types.ListResult{
		Tasks:     page,
		TotalSize: len(all),
	}
	if end < len(all) {
		result.NextPageToken = all[end].ID
	}
	return result, nil
}

func cloneTask(t types.Task) types.Task {
	out := t
	out.History = append([]types.Message(nil), t.History...)
	out.Artifacts = append([]types.Artifact(nil), t.Artifacts...)
	if t.Metadata != nil {
		out.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
