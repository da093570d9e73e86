package workflow

import (
	"context"

	"corrflow/internal/config"
	"corrflow/internal/lifecycle"
	"corrflow/internal/logging"
	"corrflow/internal/services"
	"corrflow/internal/store"
)

// SubmitRequest hands a correspondence to the approval chain.
//
// A Correspondence with ID 0 is inserted together with its CC list,
// attachments and stages. A non-zero ID submits an existing draft; CC and
// Attachments are ignored because the draft already carries them.
type SubmitRequest struct {
	Correspondence *store.Correspondence
	CC             []store.CCRecipient
	Attachments    []store.Attachment
	ActorID        int64
	// Assign runs inside the transaction before a new row is inserted and
	// sets its reference number. It may run more than once when the
	// transaction is retried.
	Assign func(ctx context.Context, tx *store.Tx, corr *store.Correspondence) error
}

// SubmitResult describes the persisted submission.
type SubmitResult struct {
	ID      int64
	Number  string
	Status  lifecycle.Status
	Handler int64
	Stages  []store.NewStage
}

// Submit builds the chain for req and persists the header row and its stages
// atomically. When no stage applies the configured empty-chain policy either
// refuses the submission or approves the correspondence outright.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	corr := req.Correspondence
	if corr == nil {
		return SubmitResult{}, services.Wrap(services.ErrValidation, "workflow", "submit", "correspondence is required", nil)
	}
	stages, err := e.builder.Build(ctx, Request{
		SenderID:         corr.SenderID,
		DivisionID:       corr.SenderDivisionID,
		DepartmentID:     corr.SenderDepartmentID,
		FinalRecipientID: corr.ReceiverID,
	})
	if err != nil {
		return SubmitResult{}, err
	}

	result := SubmitResult{Status: lifecycle.StatusPending, Stages: stages}
	if len(stages) == 0 {
		if e.emptyChain != config.EmptyChainApprove {
			return SubmitResult{}, services.Wrap(services.ErrValidation, "workflow", "submit",
				"no approval stage applies; choose a final recipient other than the sender", nil)
		}
		result.Status = lifecycle.StatusApproved
	} else {
		result.Handler = stages[0].AssignedTo
	}

	var (
		row *store.Correspondence
		cc  []store.CCRecipient
	)
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		if corr.ID == 0 {
			fresh := *corr
			if req.Assign != nil {
				if err := req.Assign(ctx, tx, &fresh); err != nil {
					return err
				}
			}
			fresh.Status = result.Status
			fresh.CurrentHandlerID = result.Handler
			id, err := tx.InsertCorrespondence(ctx, &fresh)
			if err != nil {
				return err
			}
			if err := tx.InsertCC(ctx, id, req.CC); err != nil {
				return err
			}
			if err := tx.InsertAttachments(ctx, id, req.Attachments); err != nil {
				return err
			}
			row, cc = &fresh, req.CC
		} else {
			existing, err := tx.GetCorrespondence(ctx, corr.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				return services.Wrap(services.ErrNotFound, "workflow", "submit", "correspondence not found", nil)
			}
			if existing.Status != lifecycle.StatusDraft {
				return services.Wrap(services.ErrInvalidTransition, "workflow", "submit",
					"only drafts can be submitted, status is "+string(existing.Status), nil)
			}
			if !sameRoute(existing, corr) {
				return services.Wrap(services.ErrConflict, "workflow", "submit",
					"draft was edited while it was being submitted; reload and try again", nil)
			}
			if err := tx.TransitionCorrespondence(ctx, existing.ID, lifecycle.StatusDraft, result.Status, result.Handler); err != nil {
				return err
			}
			existing.Status = result.Status
			existing.CurrentHandlerID = result.Handler
			row = existing
			if result.Status == lifecycle.StatusApproved {
				if cc, err = tx.CCRecipients(ctx, existing.ID); err != nil {
					return err
				}
			}
		}
		return tx.InsertStages(ctx, row.ID, stages)
	})
	if err != nil {
		return SubmitResult{}, classify("submit", err)
	}
	result.ID = row.ID
	result.Number = row.Number

	ctx = services.WithCorrespondenceID(ctx, row.ID)
	logging.WithContext(ctx, e.logger).Info("correspondence submitted",
		logging.String("number", row.Number),
		logging.Int("stages", len(stages)),
		logging.String("status", string(result.Status)),
		logging.Int64("handler", result.Handler),
		logging.String(logging.FieldEventType, "correspondence_submitted"),
	)
	e.Emit(ctx, e.submitEffects(row, result, cc, req.ActorID)...)
	return result, nil
}

// sameRoute reports whether the header fields the chain is built from match,
// so stages derived from b are valid for the stored row a.
func sameRoute(a, b *store.Correspondence) bool {
	return a.SenderID == b.SenderID &&
		a.SenderType == b.SenderType &&
		a.SenderDivisionID == b.SenderDivisionID &&
		a.SenderDepartmentID == b.SenderDepartmentID &&
		a.ReceiverID == b.ReceiverID
}
