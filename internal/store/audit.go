package store

import (
	"context"
	"fmt"
)

// InsertAudit appends an entry to the audit trail.
func (s *Store) InsertAudit(ctx context.Context, e AuditEntry) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO audit_logs (user_id, action, entity_type, entity_id, details, ip_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullableID(e.UserID), e.Action, e.EntityType, nullableID(e.EntityID),
		nullableString(e.Details), nullableString(e.IPAddress), formatTime(now()))
	if err != nil {
		return 0, fmt.Errorf("insert audit entry: %w", err)
	}
	return res.LastInsertId()
}

// AuditEntries returns one page of the audit trail, newest first.
func (s *Store) AuditEntries(ctx context.Context, page, limit int) ([]AuditEntry, Page, error) {
	ctx = ensureContext(ctx)
	page, limit = normalizePage(page, limit)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM audit_logs`).Scan(&total); err != nil {
		return nil, Page{}, fmt.Errorf("count audit entries: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, COALESCE(a.user_id, 0), a.action, a.entity_type, COALESCE(a.entity_id, 0),
		        COALESCE(a.details, ''), COALESCE(a.ip_address, ''), a.created_at, COALESCE(u.full_name, '')
		 FROM audit_logs a LEFT JOIN users u ON u.id = a.user_id
		 ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?`, limit, (page-1)*limit)
	if err != nil {
		return nil, Page{}, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var (
			e         AuditEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
			&e.Details, &e.IPAddress, &createdAt, &e.UserName); err != nil {
			return nil, Page{}, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.CreatedAt, err = parseTimeString(createdAt); err != nil {
			return nil, Page{}, fmt.Errorf("parse audit created_at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, Page{}, err
	}
	return out, Page{Page: page, Limit: limit, Total: total}, nil
}
