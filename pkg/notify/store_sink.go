package notify

import (
	"context"

	"github.com/pairlink-inc/pairlink-engine/pkg/models"
)

// NotificationStore is the subset of the notification repository the sink needs.
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// StoreSink persists events as notification rows so the surrounding system can
// render them to users.
type StoreSink struct {
	store NotificationStore
}

// NewStoreSink creates a sink backed by the given store.
func NewStoreSink(store NotificationStore) *StoreSink {
	return &StoreSink{store: store}
}

// Deliver implements Sink.
func (s *StoreSink) Deliver(ctx context.Context, event Event) error {
	return s.store.Create(ctx, &models.Notification{
		UserID:         event.RecipientID,
		Message:        event.Message,
		Type:           event.Type,
		RelationshipID: event.RelationshipID,
	})
}

var _ Sink = (*StoreSink)(nil)
