package store

import (
	"context"
	"fmt"
)

// AddComment appends a comment to a correspondence and returns its id.
func (s *Store) AddComment(ctx context.Context, corrID, userID int64, text string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO comments (correspondence_id, user_id, comment_text, created_at) VALUES (?, ?, ?, ?)`,
		corrID, userID, text, formatTime(now()))
	if err != nil {
		return 0, fmt.Errorf("add comment: %w", err)
	}
	return res.LastInsertId()
}

// Comments lists the comments on a correspondence in posting order.
func (s *Store) Comments(ctx context.Context, corrID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT cm.id, cm.correspondence_id, cm.user_id, cm.comment_text, cm.created_at,
		        COALESCE(u.full_name, ''), COALESCE(r.name, '')
		 FROM comments cm
		 LEFT JOIN users u ON u.id = cm.user_id
		 LEFT JOIN roles r ON r.id = u.role_id
		 WHERE cm.correspondence_id = ? ORDER BY cm.created_at, cm.id`, corrID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		var (
			c         Comment
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.CorrespondenceID, &c.UserID, &c.Text, &createdAt,
			&c.AuthorName, &c.RoleName); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		if c.CreatedAt, err = parseTimeString(createdAt); err != nil {
			return nil, fmt.Errorf("parse comment created_at: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
