package domain

import (
	"context"

	"github.com/dockerplatform/registry-gate/pkg/registry"
)

// SyncService applies registry push notifications to the tag catalog.
// Processing is lenient: events that cannot be applied are dropped, an error
// is only returned for failures worth logging at the endpoint boundary.
type SyncService interface {
	HandleNotification(ctx context.Context, notification *registry.Notification) error
}
