// Package pushconfig implements the Push-Notification Config Store (spec
// component C7): per-task CRUD over webhook configs. Delivery is out of
// scope; this package only persists configuration.
package pushconfig

import (
	"context"

	"github.com/a2aserver/a2a-core/a2a/types"
)

// Store abstracts push-notification config persistence.
type Store interface {
	// Set upserts config for taskID, assigning config.ID if empty, and
	// returns the stored value.
	Set(ctx context.Context, taskID string, config types.PushNotificationConfig) (types.PushNotificationConfig, error)
	// List returns every config stored for taskID.
	List(ctx context.Context, taskID string) ([]types.PushNotificationConfig, error)
	// Get returns the config stored under (taskID, id), or ok=false if absent.
	Get(ctx context.Context, taskID, id string) (config types.PushNotificationConfig, ok bool, err error)
	// Delete removes the config stored under (taskID, id). Deleting an absent
	// config is not an error.
	Delete(ctx context.Context, taskID, id string) error
}
