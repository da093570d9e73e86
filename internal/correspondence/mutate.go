package correspondence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"corrflow/internal/audit"
	"corrflow/internal/lifecycle"
	"corrflow/internal/services"
	"corrflow/internal/store"
)

// DraftInput lists the editable fields of a draft. Nil fields stay unchanged;
// a zero ReceiverID clears the receiver.
type DraftInput struct {
	Type       *string
	Subject    *string
	Content    *string
	Priority   *string
	ReceiverID *int64
	DueDate    *time.Time
}

// UpdateDraft edits a draft. Only the sender or a manager may edit, and only
// while the correspondence is still a draft.
func (s *Service) UpdateDraft(ctx context.Context, actorID, id int64, in DraftInput) error {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	corr, err := s.load(ctx, id, "update")
	if err != nil {
		return err
	}
	if corr.SenderID != actor.ID && !s.IsManager(actor) {
		return services.Wrap(services.ErrForbidden, "correspondence", "update", "only the sender may edit this draft", nil)
	}
	if corr.Status != lifecycle.StatusDraft {
		return services.Wrap(services.ErrInvalidTransition, "correspondence", "update",
			"only drafts can be edited, status is "+string(corr.Status), nil)
	}
	patch, changed, err := s.draftPatch(ctx, in)
	if err != nil {
		return err
	}
	if patch.Empty() {
		return services.Wrap(services.ErrValidation, "correspondence", "update", "nothing to update", nil)
	}
	if err := s.store.UpdateDraft(ctx, id, patch); err != nil {
		if errors.Is(err, store.ErrStaleState) {
			return services.Wrap(services.ErrInvalidTransition, "correspondence", "update", "draft was submitted concurrently", err)
		}
		return wrapStore("update", err)
	}
	s.record(services.WithCorrespondenceID(ctx, id), actor, audit.ActionUpdate, id, map[string]any{"fields": changed})
	return nil
}

func (s *Service) draftPatch(ctx context.Context, in DraftInput) (store.DraftPatch, []string, error) {
	var (
		patch   store.DraftPatch
		changed []string
	)
	if in.Type != nil {
		v := strings.TrimSpace(*in.Type)
		if v == "" {
			return patch, nil, services.Wrap(services.ErrValidation, "correspondence", "update", "type must not be empty", nil)
		}
		patch.Type = &v
		changed = append(changed, "type")
	}
	if in.Subject != nil {
		v := strings.TrimSpace(*in.Subject)
		if v == "" {
			return patch, nil, services.Wrap(services.ErrValidation, "correspondence", "update", "subject must not be empty", nil)
		}
		patch.Subject = &v
		changed = append(changed, "subject")
	}
	if in.Content != nil {
		v := *in.Content
		patch.Content = &v
		changed = append(changed, "content")
	}
	if in.Priority != nil {
		p, ok := lifecycle.ParsePriority(*in.Priority)
		if !ok {
			return patch, nil, services.Wrap(services.ErrValidation, "correspondence", "update",
				fmt.Sprintf("unknown priority %q", *in.Priority), nil)
		}
		patch.Priority = &p
		changed = append(changed, "priority")
	}
	if in.ReceiverID != nil {
		v := *in.ReceiverID
		if v > 0 {
			if err := s.requireActiveUser(ctx, v, "receiver"); err != nil {
				return patch, nil, err
			}
		}
		patch.ReceiverID = &v
		changed = append(changed, "receiver_id")
	}
	if in.DueDate != nil {
		v := in.DueDate.UTC()
		patch.DueDate = &v
		changed = append(changed, "due_date")
	}
	return patch, changed, nil
}

// Archive flags a correspondence as archived. The sender and managers may
// archive. It reports whether the call changed anything; archiving an
// archived correspondence is a no-op.
func (s *Service) Archive(ctx context.Context, actorID, id int64) (bool, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return false, err
	}
	corr, err := s.load(ctx, id, "archive")
	if err != nil {
		return false, err
	}
	if corr.SenderID != actor.ID && !s.IsManager(actor) {
		return false, services.Wrap(services.ErrForbidden, "correspondence", "archive", "only the sender or a manager may archive", nil)
	}
	changed, err := s.store.Archive(ctx, id, actor.ID)
	if err != nil {
		return false, wrapStore("archive", err)
	}
	if changed {
		s.record(services.WithCorrespondenceID(ctx, id), actor, audit.ActionArchive, id, map[string]any{
			"status": string(corr.Status),
		})
	}
	return changed, nil
}

// Delete removes a correspondence with its stages, CC list, attachments,
// comments and signatures. Managers only.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	if err := s.requireManager(actor, "delete"); err != nil {
		return err
	}
	corr, err := s.load(ctx, id, "delete")
	if err != nil {
		return err
	}
	existed, err := s.store.Delete(ctx, id)
	if err != nil {
		return wrapStore("delete", err)
	}
	if !existed {
		return services.Wrap(services.ErrNotFound, "correspondence", "delete", "correspondence not found", nil)
	}
	s.record(services.WithCorrespondenceID(ctx, id), actor, audit.ActionDelete, id, map[string]any{
		"number":  corr.Number,
		"subject": corr.Subject,
	})
	return nil
}

// AddComment appends a remark from a user who can see the correspondence.
func (s *Service) AddComment(ctx context.Context, actorID, id int64, text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, services.Wrap(services.ErrValidation, "correspondence", "comment", "comment text is required", nil)
	}
	actor, corr, err := s.visible(ctx, actorID, id, "comment")
	if err != nil {
		return 0, err
	}
	commentID, err := s.store.AddComment(ctx, corr.ID, actor.ID, text)
	if err != nil {
		return 0, wrapStore("comment", err)
	}
	s.record(services.WithCorrespondenceID(ctx, id), actor, audit.ActionComment, id, map[string]any{"comment_id": commentID})
	return commentID, nil
}
