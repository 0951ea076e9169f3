package keyedmutex_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/a2aserver/a2a-core/a2a/internal/keyedmutex"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := keyedmutex.New()
	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("task-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), counter)
}

func TestTryLockFailsWhileHeld(t *testing.T) {
	m := keyedmutex.New()
	unlock := m.Lock("task-2")
	defer unlock()

	_, ok := m.TryLock("task-2")
	assert.False(t, ok)
}

func TestDifferentKeysDoNotContend(t *testing.T) {
	m := keyedmutex.New()
	unlockA := m.Lock("a")
	defer unlockA()

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		acquired.Store(true)
		unlockB()
		close(done)
	}()
	<-done
	assert.True(t, acquired.Load())
}
