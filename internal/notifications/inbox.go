package notifications

import (
	"context"
	"fmt"

	"corrflow/internal/services"
	"corrflow/internal/store"
)

// RelatedCorrespondence is the related_type stamped on inbox rows that point
// at a correspondence.
const RelatedCorrespondence = "correspondence"

// Inbox stores events as per-user notification rows.
type Inbox struct {
	store *store.Store
	hub   *Hub
}

// NewInbox returns an inbox transport. hub may be nil.
func NewInbox(st *store.Store, hub *Hub) *Inbox {
	return &Inbox{store: st, hub: hub}
}

// Publish writes one inbox row for the payload recipient. Events without a
// recipient are ignored.
func (i *Inbox) Publish(ctx context.Context, event Event, payload Payload) error {
	if i == nil || i.store == nil {
		return nil
	}
	recipient := payload.Recipient()
	if recipient <= 0 {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	n := store.Notification{
		UserID:  recipient,
		Type:    string(event),
		Title:   msg.title,
		Message: msg.body,
	}
	if id := payload.CorrespondenceID(); id > 0 {
		n.RelatedID = id
		n.RelatedType = RelatedCorrespondence
	}
	id, err := i.store.InsertNotification(ctx, n)
	if err != nil {
		return fmt.Errorf("inbox %s: %w", event, err)
	}
	n.ID = id
	i.hub.Send(recipient, n)
	return nil
}

// List returns the user's most recent notifications and their unread count.
func (i *Inbox) List(ctx context.Context, userID int64) ([]store.Notification, int, error) {
	items, err := i.store.Notifications(ctx, userID)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrPersistence, "notifications", "list", "query failed", err)
	}
	unread, err := i.store.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrPersistence, "notifications", "list", "count failed", err)
	}
	return items, unread, nil
}

// MarkRead marks one of the user's notifications read. Notifications owned by
// someone else are reported as not found.
func (i *Inbox) MarkRead(ctx context.Context, userID, id int64) error {
	ok, err := i.store.MarkNotificationRead(ctx, id, userID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "notifications", "mark read", "update failed", err)
	}
	if !ok {
		return services.Wrap(services.ErrNotFound, "notifications", "mark read", "notification not found", nil)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read.
func (i *Inbox) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := i.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "notifications", "mark all read", "update failed", err)
	}
	return n, nil
}
