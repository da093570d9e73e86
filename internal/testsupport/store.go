package testsupport

import (
	"context"
	"testing"

	"corrflow/internal/config"
	"corrflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// Org holds the ids of the fixture organization created by SeedOrg.
//
// The sender belongs to a division and a department whose managers are
// distinct from the sender; Final is a distinct top-level signatory.
type Org struct {
	DepartmentID int64
	DivisionID   int64
	SchoolID     int64

	Admin       int64
	DeptManager int64
	DivManager  int64
	Sender      int64
	Final       int64
	CCUser      int64
	SchoolUser  int64
	Outsider    int64
}

// Fixture role ids.
const (
	RoleAdmin    int64 = 1
	RoleManager  int64 = 2
	RoleEmployee int64 = 3
)

// FinalSignature is the stored signature image of the Final user.
const FinalSignature = "data:image/png;base64,c2lnbmF0dXJl"

// SeedOrg writes the fixture organization into st.
func SeedOrg(t testing.TB, st *store.Store) Org {
	t.Helper()

	org := Org{
		DepartmentID: 10,
		DivisionID:   20,
		SchoolID:     30,
		Admin:        1,
		DeptManager:  2,
		DivManager:   3,
		Sender:       4,
		Final:        5,
		CCUser:       6,
		SchoolUser:   7,
		Outsider:     8,
	}
	roles := []store.Role{
		{ID: RoleAdmin, Name: "مدير عام", Level: 1},
		{ID: RoleManager, Name: "رئيس قسم", Level: 2},
		{ID: RoleEmployee, Name: "موظف", Level: 3},
	}
	users := []store.User{
		{ID: org.Admin, Username: "admin", FullName: "Admin User", RoleID: RoleAdmin, Active: true},
		{ID: org.DeptManager, Username: "dept.manager", FullName: "Department Manager", RoleID: RoleManager, DepartmentID: org.DepartmentID, Active: true},
		{ID: org.DivManager, Username: "div.manager", FullName: "Division Manager", RoleID: RoleManager, DivisionID: org.DivisionID, DepartmentID: org.DepartmentID, Active: true},
		{ID: org.Sender, Username: "sender", FullName: "Sender Employee", RoleID: RoleEmployee, DivisionID: org.DivisionID, DepartmentID: org.DepartmentID, Active: true},
		{ID: org.Final, Username: "final", FullName: "Final Signatory", RoleID: RoleAdmin, Active: true},
		{ID: org.CCUser, Username: "cc.user", FullName: "Copy Recipient", RoleID: RoleEmployee, Active: true},
		{ID: org.SchoolUser, Username: "school.user", FullName: "School Staff", RoleID: RoleEmployee, SchoolID: org.SchoolID, Active: true},
		{ID: org.Outsider, Username: "outsider", FullName: "Outside Employee", RoleID: RoleEmployee, Active: true},
	}

	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		ctx := context.Background()
		for _, r := range roles {
			if err := tx.UpsertRole(ctx, r); err != nil {
				return err
			}
		}
		if err := tx.UpsertDepartment(ctx, store.Department{ID: org.DepartmentID, Name: "قسم الشؤون الإدارية", ManagerID: org.DeptManager, Active: true}); err != nil {
			return err
		}
		if err := tx.UpsertDivision(ctx, store.Division{ID: org.DivisionID, Name: "شعبة الصادر", DepartmentID: org.DepartmentID, ManagerID: org.DivManager, Active: true}); err != nil {
			return err
		}
		if err := tx.UpsertSchool(ctx, store.School{ID: org.SchoolID, Name: "مدرسة النور", Active: true}); err != nil {
			return err
		}
		for _, u := range users {
			if err := tx.UpsertUser(ctx, u); err != nil {
				return err
			}
		}
		return tx.SetUserSignature(ctx, org.Final, FinalSignature)
	})
	if err != nil {
		t.Fatalf("seed org: %v", err)
	}
	return org
}
