package correspondence

import (
	"context"

	"corrflow/internal/lifecycle"
	"corrflow/internal/services"
	"corrflow/internal/store"
)

// Detail is the full read projection of one correspondence.
type Detail struct {
	Correspondence *store.Correspondence
	Stages         []*store.Stage
	Signatures     []store.Signature
	Attachments    []store.Attachment
	Comments       []store.Comment
	CC             []store.CCRecipient
}

// Filter narrows List.
type Filter struct {
	Status     string
	Priority   string
	SenderID   int64
	ReceiverID int64
	Search     string
	Archived   *bool
	Page       int
	Limit      int
}

// visible loads a correspondence and checks that actorID may see it.
// Managers see everything; other users see what they send, receive, handle,
// sign, or are copied on.
func (s *Service) visible(ctx context.Context, actorID, id int64, op string) (*store.User, *store.Correspondence, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	corr, err := s.load(ctx, id, op)
	if err != nil {
		return nil, nil, err
	}
	if s.IsManager(actor) || corr.SenderID == actor.ID || corr.ReceiverID == actor.ID || corr.CurrentHandlerID == actor.ID {
		return actor, corr, nil
	}
	stages, err := s.store.Stages(ctx, id)
	if err != nil {
		return nil, nil, wrapStore(op, err)
	}
	for _, st := range stages {
		if st.AssignedTo == actor.ID {
			return actor, corr, nil
		}
	}
	cc, err := s.store.CCRecipients(ctx, id)
	if err != nil {
		return nil, nil, wrapStore(op, err)
	}
	for _, entry := range cc {
		if entry.Type == store.CCTypeUser && entry.RecipientID == actor.ID {
			return actor, corr, nil
		}
	}
	return nil, nil, services.Wrap(services.ErrForbidden, "correspondence", op, "correspondence is not visible to this user", nil)
}

// Get returns the detail projection.
func (s *Service) Get(ctx context.Context, actorID, id int64) (*Detail, error) {
	_, corr, err := s.visible(ctx, actorID, id, "get")
	if err != nil {
		return nil, err
	}
	d := &Detail{Correspondence: corr}
	if d.Stages, err = s.store.Stages(ctx, id); err != nil {
		return nil, wrapStore("get", err)
	}
	if d.Signatures, err = s.store.Signatures(ctx, id); err != nil {
		return nil, wrapStore("get", err)
	}
	if d.Attachments, err = s.store.Attachments(ctx, id); err != nil {
		return nil, wrapStore("get", err)
	}
	if d.Comments, err = s.store.Comments(ctx, id); err != nil {
		return nil, wrapStore("get", err)
	}
	if d.CC, err = s.store.CCRecipients(ctx, id); err != nil {
		return nil, wrapStore("get", err)
	}
	return d, nil
}

// List returns one page of correspondences. Users below manager level only
// see rows they are involved in.
func (s *Service) List(ctx context.Context, actorID int64, f Filter) ([]*store.Correspondence, store.Page, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return nil, store.Page{}, err
	}
	filter := store.ListFilter{
		SenderID:   f.SenderID,
		ReceiverID: f.ReceiverID,
		Search:     f.Search,
		Archived:   f.Archived,
		Page:       f.Page,
		Limit:      f.Limit,
	}
	if f.Status != "" {
		status, ok := lifecycle.ParseStatus(f.Status)
		if !ok {
			return nil, store.Page{}, services.Wrap(services.ErrValidation, "correspondence", "list", "unknown status "+f.Status, nil)
		}
		filter.Status = status
	}
	if f.Priority != "" {
		priority, ok := lifecycle.ParsePriority(f.Priority)
		if !ok {
			return nil, store.Page{}, services.Wrap(services.ErrValidation, "correspondence", "list", "unknown priority "+f.Priority, nil)
		}
		filter.Priority = priority
	}
	if !s.IsManager(actor) {
		filter.VisibleTo = actor.ID
	}
	rows, page, err := s.store.ListCorrespondences(ctx, filter)
	if err != nil {
		return nil, store.Page{}, wrapStore("list", err)
	}
	return rows, page, nil
}

// Stages returns the ordered chain with assignee names.
func (s *Service) Stages(ctx context.Context, actorID, id int64) ([]*store.Stage, error) {
	if _, _, err := s.visible(ctx, actorID, id, "stages"); err != nil {
		return nil, err
	}
	stages, err := s.store.Stages(ctx, id)
	if err != nil {
		return nil, wrapStore("stages", err)
	}
	return stages, nil
}

// Signatures returns the recorded signatures of a correspondence.
func (s *Service) Signatures(ctx context.Context, actorID, id int64) ([]store.Signature, error) {
	if _, _, err := s.visible(ctx, actorID, id, "signatures"); err != nil {
		return nil, err
	}
	sigs, err := s.store.Signatures(ctx, id)
	if err != nil {
		return nil, wrapStore("signatures", err)
	}
	return sigs, nil
}

// Attachments returns attachment metadata.
func (s *Service) Attachments(ctx context.Context, actorID, id int64) ([]store.Attachment, error) {
	if _, _, err := s.visible(ctx, actorID, id, "attachments"); err != nil {
		return nil, err
	}
	items, err := s.store.Attachments(ctx, id)
	if err != nil {
		return nil, wrapStore("attachments", err)
	}
	return items, nil
}

// Comments returns the comments, oldest first.
func (s *Service) Comments(ctx context.Context, actorID, id int64) ([]store.Comment, error) {
	if _, _, err := s.visible(ctx, actorID, id, "comments"); err != nil {
		return nil, err
	}
	items, err := s.store.Comments(ctx, id)
	if err != nil {
		return nil, wrapStore("comments", err)
	}
	return items, nil
}

// Statistics summarizes volume across all correspondences plus the actor's
// own pending queue.
func (s *Service) Statistics(ctx context.Context, actorID int64) (store.Statistics, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return store.Statistics{}, err
	}
	stats, err := s.store.Statistics(ctx, actor.ID)
	if err != nil {
		return store.Statistics{}, wrapStore("statistics", err)
	}
	return stats, nil
}

// UserStatistics reports one user's activity. Users may read their own
// numbers; managers may read anyone's.
func (s *Service) UserStatistics(ctx context.Context, actorID, userID int64) (store.UserStatistics, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return store.UserStatistics{}, err
	}
	if userID != actor.ID && !s.IsManager(actor) {
		return store.UserStatistics{}, services.Wrap(services.ErrForbidden, "correspondence", "user statistics", "managers only", nil)
	}
	stats, err := s.store.UserStatistics(ctx, userID)
	if err != nil {
		return store.UserStatistics{}, wrapStore("user statistics", err)
	}
	return stats, nil
}
