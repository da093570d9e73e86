package workflow

import (
	"context"
	"errors"
	"log/slog"

	"corrflow/internal/audit"
	"corrflow/internal/config"
	"corrflow/internal/directory"
	"corrflow/internal/effects"
	"corrflow/internal/lifecycle"
	"corrflow/internal/logging"
	"corrflow/internal/notifications"
	"corrflow/internal/services"
	"corrflow/internal/store"
)

// Engine owns every transition of a correspondence's approval chain.
type Engine struct {
	store      *store.Store
	builder    *Builder
	classifier *Classifier
	emitter    effects.Emitter
	notifier   notifications.Service
	audit      *audit.Recorder
	emptyChain string
	logger     *slog.Logger
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithEmitter routes post-commit effects through emitter instead of running
// them inline.
func WithEmitter(emitter effects.Emitter) EngineOption {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// WithNotifier overrides the notification service.
func WithNotifier(notifier notifications.Service) EngineOption {
	return func(e *Engine) {
		if notifier != nil {
			e.notifier = notifier
		}
	}
}

// NewEngine constructs an engine. Without options, effects run inline and
// notifications are discarded.
func NewEngine(cfg *config.Config, st *store.Store, dir directory.Directory, logger *slog.Logger, opts ...EngineOption) *Engine {
	logger = logging.NewComponentLogger(logger, "workflow")
	e := &Engine{
		store:      st,
		builder:    NewBuilder(cfg, dir),
		classifier: NewClassifier(config.DefaultRejectionLabels()),
		emitter:    effects.NewInline(logger, 0),
		notifier:   notifications.Noop(),
		audit:      audit.NewRecorder(st),
		emptyChain: config.EmptyChainReject,
		logger:     logger,
	}
	if cfg != nil {
		e.classifier = NewClassifier(cfg.Workflow.RejectionLabels)
		e.emptyChain = cfg.Workflow.EmptyChain
		e.emitter = effects.NewInline(logger, cfg.EffectTimeout())
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Builder exposes the stage builder.
func (e *Engine) Builder() *Builder {
	return e.builder
}

// Emit hands effects to the engine's emitter. The correspondence service uses
// it so its audit entries share the engine's delivery path.
func (e *Engine) Emit(ctx context.Context, effs ...effects.Effect) {
	if len(effs) == 0 {
		return
	}
	e.emitter.Emit(ctx, effs...)
}

// Recorder returns the audit recorder effects are written through.
func (e *Engine) Recorder() *audit.Recorder {
	return e.audit
}

// SignRequest is one signing action.
type SignRequest struct {
	CorrespondenceID int64
	UserID           int64
	Decision         string
	Notes            string
}

// SignResult reports the outcome of a successful Sign.
type SignResult struct {
	CorrespondenceID int64
	Decision         Decision
	Label            string
	Stage            store.Stage
	Status           lifecycle.Status
	NextHandler      int64
	Terminal         bool
	SignatureID      int64
}

// Sign applies the acting user's decision to their pending stage.
func (e *Engine) Sign(ctx context.Context, req SignRequest) (SignResult, error) {
	ctx = services.WithCorrespondenceID(services.WithUserID(ctx, req.UserID), req.CorrespondenceID)
	if req.CorrespondenceID <= 0 || req.UserID <= 0 {
		return SignResult{}, services.Wrap(services.ErrValidation, "workflow", "sign", "correspondence and user are required", nil)
	}
	decision, err := e.classifier.Classify(req.Decision)
	if err != nil {
		return SignResult{}, err
	}

	var (
		result SignResult
		corr   *store.Correspondence
		cc     []store.CCRecipient
	)
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		result = SignResult{CorrespondenceID: req.CorrespondenceID, Decision: decision, Label: req.Decision}
		cc = nil

		var err error
		corr, err = tx.GetCorrespondence(ctx, req.CorrespondenceID)
		if err != nil {
			return err
		}
		if corr == nil {
			return services.Wrap(services.ErrNotFound, "workflow", "sign", "correspondence not found", nil)
		}
		stage, err := tx.PendingStageFor(ctx, corr.ID, req.UserID)
		if err != nil {
			return err
		}
		if stage == nil {
			return notYourTurn(nil)
		}
		if err := tx.CompleteStage(ctx, stage.ID, req.UserID, decision.StageStatus(), req.Decision, req.Notes); err != nil {
			return notYourTurn(err)
		}
		stage.Status = decision.StageStatus()
		stage.Decision = req.Decision
		stage.Notes = req.Notes
		result.Stage = *stage

		if stage.RequiresSignature && decision == DecisionApprove {
			if result.SignatureID, err = tx.RecordSignature(ctx, corr.ID, stage.ID, req.UserID, req.Decision); err != nil {
				return err
			}
		}

		if decision == DecisionReject {
			result.Status = lifecycle.StatusRejected
			result.Terminal = true
			return tx.TransitionCorrespondence(ctx, corr.ID, corr.Status, lifecycle.StatusRejected, 0)
		}

		next, err := tx.NextStage(ctx, corr.ID, stage.Order)
		if err != nil {
			return err
		}
		if next != nil {
			if err := tx.ActivateStage(ctx, next.ID); err != nil {
				return err
			}
			if err := tx.SetHandler(ctx, corr.ID, next.AssignedTo); err != nil {
				return err
			}
			result.Status = corr.Status
			result.NextHandler = next.AssignedTo
			return nil
		}

		result.Status = lifecycle.StatusApproved
		result.Terminal = true
		if err := tx.TransitionCorrespondence(ctx, corr.ID, corr.Status, lifecycle.StatusApproved, 0); err != nil {
			return err
		}
		cc, err = tx.CCRecipients(ctx, corr.ID)
		return err
	})
	if err != nil {
		return SignResult{}, classify("sign", err)
	}

	logging.WithContext(ctx, e.logger).Info("stage signed",
		logging.String("decision", string(result.Decision)),
		logging.StageID(result.Stage.ID),
		logging.Int("stage_order", result.Stage.Order),
		logging.String("status", string(result.Status)),
		logging.Int64("next_handler", result.NextHandler),
		logging.String(logging.FieldEventType, "stage_signed"),
	)
	e.Emit(ctx, e.signEffects(corr, result, cc, req)...)
	return result, nil
}

// notYourTurn maps a missing or concurrently completed stage to ErrNotYourTurn.
func notYourTurn(err error) error {
	if err != nil && !errors.Is(err, store.ErrStaleState) {
		return err
	}
	return services.Wrap(services.ErrNotYourTurn, "workflow", "sign", "no pending stage is assigned to this user", nil)
}

// classify tags unmarked failures as persistence errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if services.KindOf(err) != services.KindInternal {
		return err
	}
	if errors.Is(err, store.ErrStaleState) {
		return services.Wrap(services.ErrConflict, "workflow", op, "correspondence changed concurrently", err)
	}
	return services.Wrap(services.ErrPersistence, "workflow", op, "transaction failed", err)
}
