package directory

import (
	"context"
	"fmt"

	"corrflow/internal/lifecycle"
	"corrflow/internal/store"
)

// Directory resolves organizational lookups. Absent managers are reported with
// ok == false rather than an error.
type Directory interface {
	DivisionManager(ctx context.Context, divisionID int64) (int64, bool, error)
	DepartmentManager(ctx context.Context, departmentID int64) (int64, bool, error)
	User(ctx context.Context, userID int64) (*store.User, error)
}

// SQLDirectory reads the organization chart straight from the store.
type SQLDirectory struct {
	store *store.Store
}

// NewSQLDirectory returns a Directory backed by st.
func NewSQLDirectory(st *store.Store) *SQLDirectory {
	return &SQLDirectory{store: st}
}

// DivisionManager implements Directory.
func (d *SQLDirectory) DivisionManager(ctx context.Context, divisionID int64) (int64, bool, error) {
	if divisionID <= 0 {
		return 0, false, nil
	}
	return d.store.DivisionManager(ctx, divisionID)
}

// DepartmentManager implements Directory.
func (d *SQLDirectory) DepartmentManager(ctx context.Context, departmentID int64) (int64, bool, error) {
	if departmentID <= 0 {
		return 0, false, nil
	}
	return d.store.DepartmentManager(ctx, departmentID)
}

// User implements Directory. It returns nil for unknown users.
func (d *SQLDirectory) User(ctx context.Context, userID int64) (*store.User, error) {
	if userID <= 0 {
		return nil, nil
	}
	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("directory user: %w", err)
	}
	return user, nil
}

// Placement reports the organizational slot a user writes from: their
// division, else their department, else their school, else management.
func Placement(u *store.User) lifecycle.Placement {
	switch {
	case u == nil:
		return lifecycle.PlacementManagement
	case u.DivisionID > 0:
		return lifecycle.PlacementDivision
	case u.DepartmentID > 0:
		return lifecycle.PlacementDepartment
	case u.SchoolID > 0:
		return lifecycle.PlacementSchool
	default:
		return lifecycle.PlacementManagement
	}
}
