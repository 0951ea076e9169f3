package pushconfig

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/a2aserver/a2a-core/a2a/types"
)

// MemoryStore is the in-memory, default push-notification config backend.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]map[string]types.PushNotificationConfig
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]map[string]types.PushNotificationConfig)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Set(_ context.Context, taskID string, config types.PushNotificationConfig) (types.PushNotificationConfig, error) {
	if config.ID == "" {
		config.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.configs[taskID]
	if !ok {
		byID = make(map[string]types.PushNotificationConfig)
		s.configs[taskID] = byID
	}
	byID[config.ID] = config
	return config, nil
}

func (s *MemoryStore) List(_ context.Context, taskID string) ([]types.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.configs[taskID]
	out := make([]types.PushNotificationConfig, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, taskID, id string) (types.PushNotificationConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID, ok := s.configs[taskID]
	if !ok {
		return types.PushNotificationConfig{}, false, nil
	}
	c, ok := byID[id]
	return c, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, taskID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byID, ok := s.configs[taskID]; ok {
		delete(byID, id)
	}
	return nil
}
