// Package keyedmutex provides a per-key mutual exclusion primitive: a map of
// *sync.Mutex keyed by string, grounded in the teacher's per-id locking idiom
// (registry/store/memory.Store's sync.RWMutex-guarded map, generalized from
// one global lock to one lock per key) so a hot task never contends with an
// unrelated one.
package keyedmutex

import "sync"

// Map lazily creates one *sync.Mutex per key and never removes it: task and
// subscription counts in this server are bounded by operator-managed
// retention, not by unbounded key churn, so leaking one mutex per ever-seen
// key is an acceptable tradeoff. Every lookup takes the map's own mutex
// briefly before locking the per-key mutex.
type Map struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs an empty Map.
func New() *Map {
	return &Map{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, blocking until it is available, and
// returns an unlock function the caller must invoke exactly once.
func (m *Map) Lock(key string) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// TryLock attempts to acquire the mutex for key without blocking. It returns
// an unlock function and true on success, or a nil function and false if the
// key is already locked.
func (m *Map) TryLock(key string) (unlock func(), ok bool) {
	m.mu.Lock()
	l, exists := m.locks[key]
	if !exists {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	if !l.TryLock() {
		return nil, false
	}
	return l.Unlock, true
}
