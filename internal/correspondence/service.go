package correspondence

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"corrflow/internal/audit"
	"corrflow/internal/config"
	"corrflow/internal/directory"
	"corrflow/internal/lifecycle"
	"corrflow/internal/logging"
	"corrflow/internal/services"
	"corrflow/internal/store"
	"corrflow/internal/workflow"
)

// Service implements the correspondence operations.
type Service struct {
	store  *store.Store
	dir    directory.Directory
	engine *workflow.Engine
	logger *slog.Logger
	clock  func() time.Time

	managerLevel    int
	defaultType     string
	defaultPriority lifecycle.Priority
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for reference years.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService wires the aggregate to its collaborators.
func NewService(cfg *config.Config, st *store.Store, dir directory.Directory, engine *workflow.Engine, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:           st,
		dir:             dir,
		engine:          engine,
		logger:          logging.NewComponentLogger(logger, "correspondence"),
		clock:           time.Now,
		managerLevel:    2,
		defaultType:     "صادر",
		defaultPriority: lifecycle.PriorityNormal,
	}
	if cfg != nil {
		if cfg.Auth.ManagerLevel > 0 {
			s.managerLevel = cfg.Auth.ManagerLevel
		}
		if t := strings.TrimSpace(cfg.Workflow.DefaultType); t != "" {
			s.defaultType = t
		}
		if p, ok := lifecycle.ParsePriority(cfg.Workflow.DefaultPriority); ok {
			s.defaultPriority = p
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Actor resolves the acting user. Unknown or inactive users are unauthenticated.
func (s *Service) Actor(ctx context.Context, userID int64) (*store.User, error) {
	if userID <= 0 {
		return nil, services.Wrap(services.ErrUnauthenticated, "correspondence", "actor", "missing user", nil)
	}
	user, err := s.dir.User(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "correspondence", "actor", "user lookup failed", err)
	}
	if user == nil || !user.Active {
		return nil, services.Wrap(services.ErrUnauthenticated, "correspondence", "actor", "unknown or inactive user", nil)
	}
	return user, nil
}

// IsManager reports whether u holds at least the manager level.
func (s *Service) IsManager(u *store.User) bool {
	return u != nil && u.Level > 0 && u.Level <= s.managerLevel
}

func (s *Service) requireManager(actor *store.User, op string) error {
	if s.IsManager(actor) {
		return nil
	}
	return services.Wrap(services.ErrForbidden, "correspondence", op, "manager level required", nil)
}

func (s *Service) load(ctx context.Context, id int64, op string) (*store.Correspondence, error) {
	if id <= 0 {
		return nil, services.Wrap(services.ErrValidation, "correspondence", op, "invalid id", nil)
	}
	corr, err := s.store.GetCorrespondence(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "correspondence", op, "load failed", err)
	}
	if corr == nil {
		return nil, services.Wrap(services.ErrNotFound, "correspondence", op, "correspondence not found", nil)
	}
	return corr, nil
}

func (s *Service) record(ctx context.Context, actor *store.User, action string, corrID int64, details map[string]any) {
	s.engine.Emit(ctx, s.engine.Recorder().Effect(audit.Entry{
		UserID:     actor.ID,
		Action:     action,
		EntityType: audit.EntityCorrespondence,
		EntityID:   corrID,
		Details:    details,
	}))
}
