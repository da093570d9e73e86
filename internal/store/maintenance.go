package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"corrflow/internal/lifecycle"
)

// Statistics summarizes correspondence volume. When forUser is positive,
// PendingMine counts the pending stages waiting on that user.
func (s *Store) Statistics(ctx context.Context, forUser int64) (Statistics, error) {
	ctx = ensureContext(ctx)
	stats := Statistics{
		ByStatus:   make(map[lifecycle.Status]int),
		ByPriority: make(map[lifecycle.Priority]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM correspondences GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("statistics by status: %w", err)
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.ByStatus[lifecycle.Status(status)] = count
		stats.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT priority, COUNT(1) FROM correspondences GROUP BY priority`)
	if err != nil {
		return stats, fmt.Errorf("statistics by priority: %w", err)
	}
	for rows.Next() {
		var (
			priority string
			count    int
		)
		if err := rows.Scan(&priority, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.ByPriority[lifecycle.Priority(priority)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	current := now()
	dayStart := time.Date(current.Year(), current.Month(), current.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(current.Year(), current.Month(), 1, 0, 0, 0, 0, time.UTC)
	if err := s.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN due_date IS NOT NULL AND due_date < ? AND status = ? THEN 1 ELSE 0 END), 0)
		 FROM correspondences`,
		formatTime(dayStart), formatTime(monthStart), formatTime(current), string(lifecycle.StatusPending),
	).Scan(&stats.Today, &stats.ThisMonth, &stats.Overdue); err != nil {
		return stats, fmt.Errorf("statistics by period: %w", err)
	}

	senders, err := s.db.QueryContext(ctx,
		`SELECT c.sender_id, COALESCE(u.full_name, ''), COUNT(1) AS n
		 FROM correspondences c LEFT JOIN users u ON u.id = c.sender_id
		 GROUP BY c.sender_id ORDER BY n DESC, c.sender_id LIMIT 5`)
	if err != nil {
		return stats, fmt.Errorf("statistics top senders: %w", err)
	}
	defer senders.Close()
	for senders.Next() {
		var sc SenderCount
		if err := senders.Scan(&sc.UserID, &sc.FullName, &sc.Count); err != nil {
			return stats, err
		}
		stats.TopSenders = append(stats.TopSenders, sc)
	}
	if err := senders.Err(); err != nil {
		return stats, err
	}

	if forUser > 0 {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM workflow_stages WHERE assigned_to = ? AND status = ?`,
			forUser, string(lifecycle.StagePending)).Scan(&stats.PendingMine); err != nil {
			return stats, fmt.Errorf("statistics pending stages: %w", err)
		}
	}
	return stats, nil
}

// UserStatistics summarizes one user's activity.
func (s *Store) UserStatistics(ctx context.Context, userID int64) (UserStatistics, error) {
	var stats UserStatistics
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT
		   (SELECT COUNT(1) FROM correspondences WHERE sender_id = ?),
		   (SELECT COUNT(1) FROM correspondences WHERE receiver_id = ?),
		   (SELECT COUNT(1) FROM correspondence_signatures WHERE user_id = ?),
		   (SELECT COUNT(1) FROM workflow_stages WHERE assigned_to = ? AND status = ?)`,
		userID, userID, userID, userID, string(lifecycle.StagePending),
	).Scan(&stats.Sent, &stats.Received, &stats.Signatures, &stats.Pending)
	if err != nil {
		return stats, fmt.Errorf("user statistics %d: %w", userID, err)
	}
	return stats, nil
}

var expectedTables = []string{
	"roles", "departments", "divisions", "schools", "users", "user_signatures",
	"correspondences", "workflow_stages", "correspondence_cc", "correspondence_attachments",
	"correspondence_signatures", "comments", "notifications", "audit_logs", "reference_counters",
}

// CheckHealth returns diagnostic information about the database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}
	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil && !errors.Is(err, sql.ErrNoRows) {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	present := make(map[string]struct{})
	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list tables: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		present[name] = struct{}{}
	}
	rows.Close()
	for _, table := range expectedTables {
		if _, ok := present[table]; !ok {
			health.MissingTables = append(health.MissingTables, table)
		}
	}
	sort.Strings(health.MissingTables)

	if health.Migrations, err = s.AppliedMigrations(connCtx); err != nil {
		health.Error = err.Error()
		return health, err
	}

	if len(health.MissingTables) == 0 {
		if err := s.db.QueryRowContext(connCtx,
			`SELECT (SELECT COUNT(1) FROM correspondences),
			        (SELECT COUNT(1) FROM workflow_stages WHERE status = ?)`,
			string(lifecycle.StagePending)).Scan(&health.Correspondences, &health.PendingStages); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count rows: %w", err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")
	return health, nil
}
