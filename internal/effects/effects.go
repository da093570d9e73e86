package effects

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"corrflow/internal/logging"
	"corrflow/internal/services"
)

// Effect is one unit of post-commit work.
type Effect struct {
	// Name identifies the effect in logs ("audit", "notify:approval_needed").
	Name             string
	CorrespondenceID int64
	Run              func(ctx context.Context) error
}

// Emitter accepts effects for execution.
type Emitter interface {
	Emit(ctx context.Context, effects ...Effect)
}

// Inline runs effects immediately, in order, on the calling goroutine.
type Inline struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewInline returns a synchronous emitter. A zero timeout leaves the effect
// context without a deadline.
func NewInline(logger *slog.Logger, timeout time.Duration) *Inline {
	return &Inline{logger: logging.NewComponentLogger(logger, "effects"), timeout: timeout}
}

// Emit runs every effect and logs failures.
func (i *Inline) Emit(ctx context.Context, effects ...Effect) {
	for _, eff := range effects {
		_ = execute(detach(ctx), i.logger, i.timeout, eff)
	}
}

// detach keeps the request values (request id, user id) for log enrichment
// while dropping the caller's cancellation and deadline.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

func execute(ctx context.Context, logger *slog.Logger, timeout time.Duration, eff Effect) (err error) {
	if eff.Run == nil {
		return nil
	}
	if eff.CorrespondenceID > 0 {
		ctx = services.WithCorrespondenceID(ctx, eff.CorrespondenceID)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("effect %s panicked: %v", eff.Name, r)
		}
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "side effect failed; transition already committed",
				"effect_failed",
				logging.String("effect", eff.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notification transport and database access"),
				logging.String(logging.FieldImpact, "audit entry or notification missing for this transition"),
			)
		}
	}()
	return eff.Run(ctx)
}
