package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"corrflow/internal/logging"
	"corrflow/internal/services"
	"corrflow/internal/store"
)

// Seed is the YAML document accepted by ImportSeed.
type Seed struct {
	Roles       []SeedRole       `yaml:"roles"`
	Departments []SeedDepartment `yaml:"departments"`
	Divisions   []SeedDivision   `yaml:"divisions"`
	Schools     []SeedSchool     `yaml:"schools"`
	Users       []SeedUser       `yaml:"users"`
}

// SeedRole is a role entry.
type SeedRole struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Level int    `yaml:"level"`
}

// SeedDepartment is a department entry.
type SeedDepartment struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Manager int64  `yaml:"manager"`
	Active  *bool  `yaml:"active"`
}

// SeedDivision is a division entry.
type SeedDivision struct {
	ID         int64  `yaml:"id"`
	Name       string `yaml:"name"`
	Department int64  `yaml:"department"`
	Manager    int64  `yaml:"manager"`
	Active     *bool  `yaml:"active"`
}

// SeedSchool is a school entry.
type SeedSchool struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Manager int64  `yaml:"manager"`
	Active  *bool  `yaml:"active"`
}

// SeedUser is a user entry. Signature holds the stored signature image data.
type SeedUser struct {
	ID         int64  `yaml:"id"`
	Username   string `yaml:"username"`
	FullName   string `yaml:"full_name"`
	Role       int64  `yaml:"role"`
	Division   int64  `yaml:"division"`
	Department int64  `yaml:"department"`
	School     int64  `yaml:"school"`
	Active     *bool  `yaml:"active"`
	Signature  string `yaml:"signature"`
}

// ImportSummary counts what an import wrote.
type ImportSummary struct {
	Roles       int `json:"roles"`
	Departments int `json:"departments"`
	Divisions   int `json:"divisions"`
	Schools     int `json:"schools"`
	Users       int `json:"users"`
	Signatures  int `json:"signatures"`
}

// ParseSeed decodes and validates a YAML seed document.
func ParseSeed(r io.Reader) (*Seed, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var seed Seed
	if err := decoder.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, services.Wrap(services.ErrValidation, "directory", "parse seed", "document is empty", nil)
		}
		return nil, services.Wrap(services.ErrValidation, "directory", "parse seed", "", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks ids and names inside the document. References to roles,
// units, and managers are checked against the database during Import, so a
// seed may update part of an existing chart.
func (s *Seed) Validate() error {
	var problems []string
	check := func(kind string, id int64, name string, seen map[int64]struct{}) {
		if id <= 0 {
			problems = append(problems, fmt.Sprintf("%s %q: id must be positive", kind, name))
			return
		}
		if strings.TrimSpace(name) == "" {
			problems = append(problems, fmt.Sprintf("%s %d: name is required", kind, id))
		}
		if _, dup := seen[id]; dup {
			problems = append(problems, fmt.Sprintf("%s %d: duplicate id", kind, id))
		}
		seen[id] = struct{}{}
	}

	roles := map[int64]struct{}{}
	for _, r := range s.Roles {
		check("role", r.ID, r.Name, roles)
		if r.Level <= 0 {
			problems = append(problems, fmt.Sprintf("role %d: level must be positive", r.ID))
		}
	}
	departments := map[int64]struct{}{}
	for _, d := range s.Departments {
		check("department", d.ID, d.Name, departments)
	}
	divisions := map[int64]struct{}{}
	for _, d := range s.Divisions {
		check("division", d.ID, d.Name, divisions)
	}
	schools := map[int64]struct{}{}
	for _, sc := range s.Schools {
		check("school", sc.ID, sc.Name, schools)
	}
	users := map[int64]struct{}{}
	usernames := map[string]struct{}{}
	for _, u := range s.Users {
		check("user", u.ID, u.FullName, users)
		name := strings.TrimSpace(u.Username)
		if name == "" {
			problems = append(problems, fmt.Sprintf("user %d: username is required", u.ID))
		} else if _, dup := usernames[name]; dup {
			problems = append(problems, fmt.Sprintf("user %d: duplicate username %q", u.ID, name))
		}
		usernames[name] = struct{}{}
	}

	if len(problems) > 0 {
		return services.Wrap(services.ErrValidation, "directory", "validate seed", strings.Join(problems, "; "), nil)
	}
	return nil
}

func activeOr(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

// ImportSeed parses a YAML seed from r and upserts it in one transaction.
// Every division, department, and user written is dropped from the cache.
func (s *Service) ImportSeed(ctx context.Context, r io.Reader) (ImportSummary, error) {
	seed, err := ParseSeed(r)
	if err != nil {
		return ImportSummary{}, err
	}
	return s.Import(ctx, seed)
}

// Import upserts an already parsed seed.
func (s *Service) Import(ctx context.Context, seed *Seed) (ImportSummary, error) {
	var summary ImportSummary
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		summary = ImportSummary{}
		for _, r := range seed.Roles {
			if err := tx.UpsertRole(ctx, store.Role{ID: r.ID, Name: strings.TrimSpace(r.Name), Level: r.Level}); err != nil {
				return err
			}
			summary.Roles++
		}
		for _, d := range seed.Departments {
			if err := tx.UpsertDepartment(ctx, store.Department{
				ID: d.ID, Name: strings.TrimSpace(d.Name), ManagerID: d.Manager, Active: activeOr(d.Active),
			}); err != nil {
				return err
			}
			summary.Departments++
		}
		for _, d := range seed.Divisions {
			if err := tx.UpsertDivision(ctx, store.Division{
				ID: d.ID, Name: strings.TrimSpace(d.Name), DepartmentID: d.Department, ManagerID: d.Manager, Active: activeOr(d.Active),
			}); err != nil {
				return err
			}
			summary.Divisions++
		}
		for _, sc := range seed.Schools {
			if err := tx.UpsertSchool(ctx, store.School{
				ID: sc.ID, Name: strings.TrimSpace(sc.Name), ManagerID: sc.Manager, Active: activeOr(sc.Active),
			}); err != nil {
				return err
			}
			summary.Schools++
		}
		for _, u := range seed.Users {
			if err := tx.UpsertUser(ctx, store.User{
				ID: u.ID, Username: strings.TrimSpace(u.Username), FullName: strings.TrimSpace(u.FullName),
				RoleID: u.Role, DivisionID: u.Division, DepartmentID: u.Department, SchoolID: u.School,
				Active: activeOr(u.Active),
			}); err != nil {
				return err
			}
			summary.Users++
			if sig := strings.TrimSpace(u.Signature); sig != "" {
				if err := tx.SetUserSignature(ctx, u.ID, sig); err != nil {
					return err
				}
				summary.Signatures++
			}
		}
		return checkManagers(ctx, tx, seed)
	})
	switch {
	case err == nil:
	case errors.Is(err, services.ErrValidation):
		return ImportSummary{}, err
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		return ImportSummary{}, services.Wrap(services.ErrValidation, "directory", "import seed",
			"seed references a role or unit that does not exist", err)
	default:
		return ImportSummary{}, services.Wrap(services.ErrPersistence, "directory", "import seed", "", err)
	}

	keys := seedKeys(seed)
	if len(seed.Roles) > 0 {
		roleIDs := make([]int64, 0, len(seed.Roles))
		for _, r := range seed.Roles {
			roleIDs = append(roleIDs, r.ID)
		}
		holders, err := s.store.UserIDsWithRoles(ctx, roleIDs)
		if err != nil {
			// The rows are committed; fall back to dropping everything.
			s.cache.Purge()
		}
		for _, id := range holders {
			keys = append(keys, UserKey(id))
		}
	}
	s.cache.Invalidate(keys...)
	s.logger.Info("organization seed imported",
		logging.String(logging.FieldEventType, "org_import"),
		logging.Int("roles", summary.Roles),
		logging.Int("departments", summary.Departments),
		logging.Int("divisions", summary.Divisions),
		logging.Int("schools", summary.Schools),
		logging.Int("users", summary.Users),
	)
	return summary, nil
}

// seedKeys lists the cache keys of the units and users named in a seed.
func seedKeys(seed *Seed) []Key {
	keys := make([]Key, 0, len(seed.Departments)+len(seed.Divisions)+len(seed.Users))
	for _, d := range seed.Departments {
		keys = append(keys, DepartmentKey(d.ID))
	}
	for _, d := range seed.Divisions {
		keys = append(keys, DivisionKey(d.ID))
	}
	for _, u := range seed.Users {
		keys = append(keys, UserKey(u.ID))
	}
	return keys
}

func checkManagers(ctx context.Context, tx *store.Tx, seed *Seed) error {
	type ref struct {
		kind    string
		id      int64
		manager int64
	}
	refs := make([]ref, 0, len(seed.Departments)+len(seed.Divisions)+len(seed.Schools))
	for _, d := range seed.Departments {
		refs = append(refs, ref{"department", d.ID, d.Manager})
	}
	for _, d := range seed.Divisions {
		refs = append(refs, ref{"division", d.ID, d.Manager})
	}
	for _, sc := range seed.Schools {
		refs = append(refs, ref{"school", sc.ID, sc.Manager})
	}
	for _, r := range refs {
		if r.manager <= 0 {
			continue
		}
		user, err := tx.GetUser(ctx, r.manager)
		if err != nil {
			return err
		}
		if user == nil {
			return services.Wrap(services.ErrValidation, "directory", "import seed",
				fmt.Sprintf("%s %d: manager %d does not exist", r.kind, r.id, r.manager), nil)
		}
	}
	return nil
}
