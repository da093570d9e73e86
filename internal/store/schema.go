package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// baseSchemaVersion is recorded in schema_version when a database is first
// created. Additive changes ship as files under migrations/ instead.
const baseSchemaVersion = 1

//go:embed schema.sql
var baseSchema string

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrSchemaMismatch reports a database created by an incompatible build.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// bootstrap creates the base schema on an empty database, refuses databases
// stamped with another base version, then applies pending migrations.
func (s *Store) bootstrap(ctx context.Context) error {
	version, err := s.baseVersion(ctx)
	if err != nil {
		return err
	}
	switch version {
	case 0:
		err = s.WithTx(ctx, func(tx *Tx) error {
			if _, err := tx.tx.ExecContext(ctx, baseSchema); err != nil {
				return fmt.Errorf("create base schema: %w", err)
			}
			_, err := tx.tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", baseSchemaVersion)
			return err
		})
		if err != nil {
			return err
		}
	case baseSchemaVersion:
	default:
		return fmt.Errorf("%w: found %d, want %d", ErrSchemaMismatch, version, baseSchemaVersion)
	}
	return s.migrate(ctx)
}

// baseVersion returns 0 when schema_version does not exist yet.
func (s *Store) baseVersion(ctx context.Context) (int, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("probe schema_version: %w", err)
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return version, nil
}

// migrate runs every embedded migration not yet listed in schema_migrations,
// in file name order, inside a single transaction.
func (s *Store) migrate(ctx context.Context) error {
	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(files)

	return s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx,
			"CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
			return fmt.Errorf("create schema_migrations: %w", err)
		}
		for _, file := range files {
			id := strings.TrimSuffix(path.Base(file), ".sql")
			res, err := tx.tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)", id)
			if err != nil {
				return fmt.Errorf("claim migration %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			body, err := migrationFiles.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read migration %s: %w", id, err)
			}
			if _, err := tx.tx.ExecContext(ctx, string(body)); err != nil {
				return fmt.Errorf("migration %s: %w", id, err)
			}
		}
		return nil
	})
}

// AppliedMigrations lists recorded migration versions in order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	var applied []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied = append(applied, id)
	}
	return applied, rows.Err()
}
