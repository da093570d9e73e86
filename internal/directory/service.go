package directory

import (
	"context"
	"fmt"
	"log/slog"

	"corrflow/internal/config"
	"corrflow/internal/logging"
	"corrflow/internal/services"
	"corrflow/internal/store"
)

// Service is the Directory used by the rest of corrflow. Reads go through
// the cache; writes go to the store and then invalidate the affected keys.
type Service struct {
	store  *store.Store
	cache  *CachedDirectory
	logger *slog.Logger
}

// NewService builds the cached directory configured by cfg.
func NewService(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...CacheOption) *Service {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	size, ttl := cfg.Directory.CacheSize, cfg.CacheTTL()
	return &Service{
		store:  st,
		cache:  NewCachedDirectory(NewSQLDirectory(st), size, ttl, opts...),
		logger: logging.NewComponentLogger(logger, "directory"),
	}
}

// DivisionManager implements Directory.
func (s *Service) DivisionManager(ctx context.Context, divisionID int64) (int64, bool, error) {
	return s.cache.DivisionManager(ctx, divisionID)
}

// DepartmentManager implements Directory.
func (s *Service) DepartmentManager(ctx context.Context, departmentID int64) (int64, bool, error) {
	return s.cache.DepartmentManager(ctx, departmentID)
}

// User implements Directory.
func (s *Service) User(ctx context.Context, userID int64) (*store.User, error) {
	return s.cache.User(ctx, userID)
}

// CacheStats exposes the cache counters for status output.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// SetDivisionManager designates a division manager and drops the cached lookup.
func (s *Service) SetDivisionManager(ctx context.Context, divisionID, managerID int64) error {
	if err := s.checkManager(ctx, managerID); err != nil {
		return err
	}
	if err := s.store.SetDivisionManager(ctx, divisionID, managerID); err != nil {
		return services.Wrap(services.ErrNotFound, "directory", "set division manager",
			fmt.Sprintf("division %d", divisionID), err)
	}
	s.cache.Invalidate(DivisionKey(divisionID))
	s.logger.Info("division manager updated",
		logging.Int64("division_id", divisionID),
		logging.Int64("manager_id", managerID),
	)
	return nil
}

// SetDepartmentManager designates a department manager and drops the cached lookup.
func (s *Service) SetDepartmentManager(ctx context.Context, departmentID, managerID int64) error {
	if err := s.checkManager(ctx, managerID); err != nil {
		return err
	}
	if err := s.store.SetDepartmentManager(ctx, departmentID, managerID); err != nil {
		return services.Wrap(services.ErrNotFound, "directory", "set department manager",
			fmt.Sprintf("department %d", departmentID), err)
	}
	s.cache.Invalidate(DepartmentKey(departmentID))
	s.logger.Info("department manager updated",
		logging.Int64("department_id", departmentID),
		logging.Int64("manager_id", managerID),
	)
	return nil
}

func (s *Service) checkManager(ctx context.Context, managerID int64) error {
	if managerID == 0 {
		return nil
	}
	user, err := s.store.GetUser(ctx, managerID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "directory", "lookup manager", "", err)
	}
	if user == nil || !user.Active {
		return services.Wrap(services.ErrValidation, "directory", "set manager",
			fmt.Sprintf("user %d does not exist or is inactive", managerID), nil)
	}
	return nil
}
