package store_test

import (
	"testing"

	"github.com/a2aserver/a2a-core/a2a/store"
)

func TestMemoryStoreConformance(t *testing.T) {
	runTaskStoreConformance(t, store.NewMemoryStore())
}
