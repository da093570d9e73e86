package workflow

import (
	"context"

	"corrflow/internal/audit"
	"corrflow/internal/effects"
	"corrflow/internal/lifecycle"
	"corrflow/internal/notifications"
	"corrflow/internal/store"
)

func (e *Engine) notify(event notifications.Event, recipient int64, corr *store.Correspondence, extra notifications.Payload) effects.Effect {
	payload := notifications.Payload{
		"recipient":        recipient,
		"correspondenceID": corr.ID,
		"number":           corr.Number,
		"subject":          corr.Subject,
	}
	for k, v := range extra {
		payload[k] = v
	}
	notifier := e.notifier
	return effects.Effect{
		Name:             "notify:" + string(event),
		CorrespondenceID: corr.ID,
		Run: func(ctx context.Context) error {
			return notifier.Publish(ctx, event, payload)
		},
	}
}

// finalEffects announces an approved chain to the sender and the CC users.
func (e *Engine) finalEffects(corr *store.Correspondence, cc []store.CCRecipient) []effects.Effect {
	out := []effects.Effect{e.notify(notifications.EventApproved, corr.SenderID, corr, nil)}
	seen := make(map[int64]struct{}, len(cc))
	for _, entry := range cc {
		if entry.Type != store.CCTypeUser || entry.RecipientID <= 0 {
			continue
		}
		if _, dup := seen[entry.RecipientID]; dup {
			continue
		}
		seen[entry.RecipientID] = struct{}{}
		out = append(out, e.notify(notifications.EventCopy, entry.RecipientID, corr, nil))
	}
	return out
}

func (e *Engine) signEffects(corr *store.Correspondence, result SignResult, cc []store.CCRecipient, req SignRequest) []effects.Effect {
	out := []effects.Effect{e.audit.Effect(audit.Entry{
		UserID:     req.UserID,
		Action:     audit.ActionSign,
		EntityType: audit.EntityCorrespondence,
		EntityID:   corr.ID,
		Details: map[string]any{
			"decision":    req.Decision,
			"notes":       req.Notes,
			"stage":       result.Stage.Name,
			"stage_order": result.Stage.Order,
			"status":      string(result.Status),
		},
	})}
	switch {
	case result.Decision == DecisionReject:
		out = append(out, e.notify(notifications.EventRejected, corr.SenderID, corr, notifications.Payload{
			"actor":    result.Stage.AssigneeName,
			"decision": req.Decision,
		}))
	case result.NextHandler > 0:
		out = append(out, e.notify(notifications.EventApprovalNeeded, result.NextHandler, corr, nil))
	case result.Terminal:
		out = append(out, e.finalEffects(corr, cc)...)
	}
	return out
}

func (e *Engine) submitEffects(corr *store.Correspondence, result SubmitResult, cc []store.CCRecipient, actorID int64) []effects.Effect {
	out := []effects.Effect{e.audit.Effect(audit.Entry{
		UserID:     actorID,
		Action:     audit.ActionSubmit,
		EntityType: audit.EntityCorrespondence,
		EntityID:   corr.ID,
		Details: map[string]any{
			"number": corr.Number,
			"stages": len(result.Stages),
			"status": string(result.Status),
		},
	})}
	if result.Handler > 0 {
		out = append(out, e.notify(notifications.EventApprovalNeeded, result.Handler, corr, nil))
	}
	if result.Status == lifecycle.StatusApproved {
		out = append(out, e.finalEffects(corr, cc)...)
	}
	return out
}
