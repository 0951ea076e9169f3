package pushconfig_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2aserver/a2a-core/a2a/pushconfig"
	"github.com/a2aserver/a2a-core/a2a/types"
)

func runStoreConformance(t *testing.T, s pushconfig.Store) {
	t.Helper()
	ctx := context.Background()
	taskID := uuid.NewString()

	t.Run("set assigns an id when absent", func(t *testing.T) {
		stored, err := s.Set(ctx, taskID, types.PushNotificationConfig{URL: "https://example.com/hook"})
		require.NoError(t, err)
		assert.NotEmpty(t, stored.ID)
	})

	t.Run("get returns the stored config", func(t *testing.T) {
		stored, err := s.Set(ctx, taskID, types.PushNotificationConfig{URL: "https://example.com/a"})
		require.NoError(t, err)

		got, ok, err := s.Get(ctx, taskID, stored.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "https://example.com/a", got.URL)
	})

	t.Run("get for unknown id returns ok=false", func(t *testing.T) {
		_, ok, err := s.Get(ctx, taskID, uuid.NewString())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list returns every config for the task", func(t *testing.T) {
		newTask := uuid.NewString()
		_, err := s.Set(ctx, newTask, types.PushNotificationConfig{URL: "https://example.com/1"})
		require.NoError(t, err)
		_, err = s.Set(ctx, newTask, types.PushNotificationConfig{URL: "https://example.com/2"})
		require.NoError(t, err)

		list, err := s.List(ctx, newTask)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("delete removes the config", func(t *testing.T) {
		stored, err := s.Set(ctx, taskID, types.PushNotificationConfig{URL: "https://example.com/delete-me"})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, taskID, stored.ID))

		_, ok, err := s.Get(ctx, taskID, stored.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete of unknown id is not an error", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, taskID, uuid.NewString()))
	})
}

func TestMemoryStoreConformance(t *testing.T) {
	runStoreConformance(t, pushconfig.NewMemoryStore())
}
