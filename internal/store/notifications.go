package store

import (
	"context"
	"fmt"
)

// InboxLimit caps how many notifications a listing returns.
const InboxLimit = 50

// InsertNotification stores an inbox entry and returns its id.
func (s *Store) InsertNotification(ctx context.Context, n Notification) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO notifications (user_id, type, title, message, related_id, related_type, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		n.UserID, n.Type, n.Title, nullableString(n.Message), nullableID(n.RelatedID),
		nullableString(n.RelatedType), formatTime(now()))
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

// Notifications returns the most recent inbox entries for a user.
func (s *Store) Notifications(ctx context.Context, userID int64) ([]Notification, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, user_id, type, title, COALESCE(message, ''), COALESCE(related_id, 0),
		        COALESCE(related_type, ''), is_read, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, InboxLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var (
			n         Notification
			read      int
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedID,
			&n.RelatedType, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read != 0
		if n.CreatedAt, err = parseTimeString(createdAt); err != nil {
			return nil, fmt.Errorf("parse notification created_at: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount returns how many unread notifications a user has.
func (s *Store) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks one of the user's notifications read. It reports
// whether the notification exists and belongs to the user.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return n > 0, nil
}

// MarkAllNotificationsRead marks every unread notification of the user read
// and returns how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}
