package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a2aserver/a2a-core/a2a/store"
)

func TestFileStoreConformance(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	require.NoError(t, err)
	runTaskStoreConformance(t, s)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	task := newTestTask()
	ctx := t.Context()
	require.NoError(t, s.Set(ctx, task))

	reopened, err := store.NewFileStore(dir)
	require.NoError(t, err)
	got, ok, err := reopened.Get(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, task.ID, got.ID)
}
