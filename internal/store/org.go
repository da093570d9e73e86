package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const userColumns = `u.id, u.username, u.full_name, COALESCE(u.role_id, 0), COALESCE(r.level, 99),
	COALESCE(u.division_id, 0), COALESCE(u.department_id, 0), COALESCE(u.school_id, 0), u.is_active`

func scanUser(scanner rowScanner) (*User, error) {
	var (
		u      User
		active int
	)
	if err := scanner.Scan(&u.ID, &u.Username, &u.FullName, &u.RoleID, &u.Level,
		&u.DivisionID, &u.DepartmentID, &u.SchoolID, &active); err != nil {
		return nil, err
	}
	u.Active = active != 0
	return &u, nil
}

func getUser(ctx context.Context, q querier, id int64) (*User, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u LEFT JOIN roles r ON r.id = u.role_id WHERE u.id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// GetUser fetches a user with the role level resolved. It returns nil when absent.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	return getUser(ensureContext(ctx), s.db, id)
}

// GetUser fetches a user inside the transaction.
func (t *Tx) GetUser(ctx context.Context, id int64) (*User, error) {
	return getUser(ctx, t.tx, id)
}

// ListUsers returns active users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+userColumns+` FROM users u LEFT JOIN roles r ON r.id = u.role_id
		 WHERE u.is_active = 1 ORDER BY u.full_name, u.id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func managerOf(ctx context.Context, q querier, table string, id int64) (int64, bool, error) {
	var manager sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT manager_id FROM `+table+` WHERE id = ? AND is_active = 1`, id).Scan(&manager)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup %s manager: %w", table, err)
	}
	if !manager.Valid || manager.Int64 <= 0 {
		return 0, false, nil
	}
	return manager.Int64, true, nil
}

// DivisionManager returns the manager of an active division, if one is designated.
func (s *Store) DivisionManager(ctx context.Context, divisionID int64) (int64, bool, error) {
	return managerOf(ensureContext(ctx), s.db, "divisions", divisionID)
}

// DepartmentManager returns the manager of an active department, if one is designated.
func (s *Store) DepartmentManager(ctx context.Context, departmentID int64) (int64, bool, error) {
	return managerOf(ensureContext(ctx), s.db, "departments", departmentID)
}

// GetDivision fetches a division. It returns nil when absent.
func (s *Store) GetDivision(ctx context.Context, id int64) (*Division, error) {
	var (
		d      Division
		active int
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, name, COALESCE(department_id, 0), COALESCE(manager_id, 0), is_active FROM divisions WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.DepartmentID, &d.ManagerID, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get division %d: %w", id, err)
	}
	d.Active = active != 0
	return &d, nil
}

// SetDivisionManager designates the manager of a division.
func (s *Store) SetDivisionManager(ctx context.Context, divisionID, managerID int64) error {
	return s.setManager(ctx, "divisions", divisionID, managerID)
}

// SetDepartmentManager designates the manager of a department.
func (s *Store) SetDepartmentManager(ctx context.Context, departmentID, managerID int64) error {
	return s.setManager(ctx, "departments", departmentID, managerID)
}

func (s *Store) setManager(ctx context.Context, table string, id, managerID int64) error {
	res, err := s.execWithRetry(ctx, `UPDATE `+table+` SET manager_id = ? WHERE id = ?`, nullableID(managerID), id)
	if err != nil {
		return fmt.Errorf("set %s manager: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set %s manager: %w", table, sql.ErrNoRows)
	}
	return nil
}

// UpsertRole inserts or updates a role keyed by id.
func (t *Tx) UpsertRole(ctx context.Context, r Role) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO roles (id, name, level) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, level = excluded.level`,
		r.ID, r.Name, r.Level)
	if err != nil {
		return fmt.Errorf("upsert role %d: %w", r.ID, err)
	}
	return nil
}

// UpsertDepartment inserts or updates a department keyed by id.
func (t *Tx) UpsertDepartment(ctx context.Context, d Department) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO departments (id, name, manager_id, is_active) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, manager_id = excluded.manager_id, is_active = excluded.is_active`,
		d.ID, d.Name, nullableID(d.ManagerID), boolToInt(d.Active))
	if err != nil {
		return fmt.Errorf("upsert department %d: %w", d.ID, err)
	}
	return nil
}

// UpsertDivision inserts or updates a division keyed by id.
func (t *Tx) UpsertDivision(ctx context.Context, d Division) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO divisions (id, name, department_id, manager_id, is_active) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, department_id = excluded.department_id,
		     manager_id = excluded.manager_id, is_active = excluded.is_active`,
		d.ID, d.Name, nullableID(d.DepartmentID), nullableID(d.ManagerID), boolToInt(d.Active))
	if err != nil {
		return fmt.Errorf("upsert division %d: %w", d.ID, err)
	}
	return nil
}

// UpsertSchool inserts or updates a school keyed by id.
func (t *Tx) UpsertSchool(ctx context.Context, sc School) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO schools (id, name, manager_id, is_active) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, manager_id = excluded.manager_id, is_active = excluded.is_active`,
		sc.ID, sc.Name, nullableID(sc.ManagerID), boolToInt(sc.Active))
	if err != nil {
		return fmt.Errorf("upsert school %d: %w", sc.ID, err)
	}
	return nil
}

// UpsertUser inserts or updates a user keyed by id.
func (t *Tx) UpsertUser(ctx context.Context, u User) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (id, username, full_name, role_id, division_id, department_id, school_id, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET username = excluded.username, full_name = excluded.full_name,
		     role_id = excluded.role_id, division_id = excluded.division_id,
		     department_id = excluded.department_id, school_id = excluded.school_id, is_active = excluded.is_active`,
		u.ID, u.Username, u.FullName, nullableID(u.RoleID), nullableID(u.DivisionID),
		nullableID(u.DepartmentID), nullableID(u.SchoolID), boolToInt(u.Active))
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

// SetUserSignature stores the signature image data applied on final-signature stages.
func (t *Tx) SetUserSignature(ctx context.Context, userID int64, data string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO user_signatures (user_id, signature_data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET signature_data = excluded.signature_data, updated_at = excluded.updated_at`,
		userID, data, formatTime(now()))
	if err != nil {
		return fmt.Errorf("set user signature %d: %w", userID, err)
	}
	return nil
}

// UserSignature returns the stored signature data for a user, or "" if none.
func (t *Tx) UserSignature(ctx context.Context, userID int64) (string, error) {
	var data string
	err := t.tx.QueryRowContext(ctx, `SELECT signature_data FROM user_signatures WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get user signature %d: %w", userID, err)
	}
	return data, nil
}

// CountUsers returns the number of active users, used by health output.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM users WHERE is_active = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}


// UserIDsWithRoles lists the users holding any of roleIDs.
func (s *Store) UserIDsWithRoles(ctx context.Context, roleIDs []int64) ([]int64, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(roleIDs))
	for _, id := range roleIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id FROM users WHERE role_id IN (`+makePlaceholders(len(roleIDs))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("users with roles: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
