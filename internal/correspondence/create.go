package correspondence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"corrflow/internal/audit"
	"corrflow/internal/directory"
	"corrflow/internal/lifecycle"
	"corrflow/internal/logging"
	"corrflow/internal/refnum"
	"corrflow/internal/services"
	"corrflow/internal/store"
	"corrflow/internal/workflow"
)

// CreateInput is a new correspondence as submitted by its sender.
type CreateInput struct {
	// Number is an optional manual reference. Empty means allocate the next
	// "<seq>/<year>" for the current year.
	Number      string
	Type        string
	Subject     string
	Content     string
	Priority    string
	ReceiverID  int64
	DueDate     *time.Time
	CC          []store.CCRecipient
	Attachments []store.Attachment
	AsDraft     bool
}

// Created identifies a stored correspondence.
type Created struct {
	ID      int64
	Number  string
	Status  lifecycle.Status
	Handler int64
}

// Create stores a correspondence for actorID. Drafts are stored without a
// chain; everything else is submitted to the workflow engine in the same
// transaction that assigns the reference number.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (Created, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return Created{}, err
	}
	corr, err := s.prepare(ctx, actor, in)
	if err != nil {
		return Created{}, err
	}
	cc, err := s.normalizeCC(ctx, in.CC)
	if err != nil {
		return Created{}, err
	}
	attachments, err := normalizeAttachments(in.Attachments, actor.ID)
	if err != nil {
		return Created{}, err
	}
	assign := s.referenceAssigner(in.Number)

	var out Created
	if in.AsDraft {
		err = s.store.WithTx(ctx, func(tx *store.Tx) error {
			row := *corr
			if err := assign(ctx, tx, &row); err != nil {
				return err
			}
			row.Status = lifecycle.StatusDraft
			id, err := tx.InsertCorrespondence(ctx, &row)
			if err != nil {
				return err
			}
			if err := tx.InsertCC(ctx, id, cc); err != nil {
				return err
			}
			if err := tx.InsertAttachments(ctx, id, attachments); err != nil {
				return err
			}
			out = Created{ID: id, Number: row.Number, Status: lifecycle.StatusDraft}
			return nil
		})
		if err != nil {
			return Created{}, wrapStore("create", err)
		}
	} else {
		res, err := s.engine.Submit(ctx, workflow.SubmitRequest{
			Correspondence: corr,
			CC:             cc,
			Attachments:    attachments,
			ActorID:        actor.ID,
			Assign:         assign,
		})
		if err != nil {
			return Created{}, err
		}
		out = Created{ID: res.ID, Number: res.Number, Status: res.Status, Handler: res.Handler}
	}

	ctx = services.WithCorrespondenceID(ctx, out.ID)
	logging.WithContext(ctx, s.logger).Info("correspondence created",
		logging.String("number", out.Number),
		logging.String("status", string(out.Status)),
		logging.Bool("draft", in.AsDraft),
		logging.String(logging.FieldEventType, "correspondence_created"),
	)
	s.record(ctx, actor, audit.ActionCreate, out.ID, map[string]any{
		"number":  out.Number,
		"subject": corr.Subject,
		"status":  string(out.Status),
	})
	return out, nil
}

const submitAttempts = 3

// SubmitDraft moves a draft into the approval chain. Only its sender or a
// manager may submit it.
func (s *Service) SubmitDraft(ctx context.Context, actorID, id int64) (Created, error) {
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return Created{}, err
	}
	// A concurrent draft edit makes the engine report a conflict; reload and
	// rebuild the chain from the new header.
	for attempt := 1; ; attempt++ {
		corr, err := s.load(ctx, id, "submit")
		if err != nil {
			return Created{}, err
		}
		if corr.SenderID != actor.ID && !s.IsManager(actor) {
			return Created{}, services.Wrap(services.ErrForbidden, "correspondence", "submit", "only the sender may submit this draft", nil)
		}
		res, err := s.engine.Submit(ctx, workflow.SubmitRequest{Correspondence: corr, ActorID: actor.ID})
		if errors.Is(err, services.ErrConflict) && attempt < submitAttempts {
			continue
		}
		if err != nil {
			return Created{}, err
		}
		return Created{ID: res.ID, Number: res.Number, Status: res.Status, Handler: res.Handler}, nil
	}
}

func (s *Service) prepare(ctx context.Context, actor *store.User, in CreateInput) (*store.Correspondence, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, services.Wrap(services.ErrValidation, "correspondence", "create", "subject is required", nil)
	}
	corrType := strings.TrimSpace(in.Type)
	if corrType == "" {
		corrType = s.defaultType
	}
	priority := s.defaultPriority
	if strings.TrimSpace(in.Priority) != "" {
		p, ok := lifecycle.ParsePriority(in.Priority)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "correspondence", "create",
				fmt.Sprintf("unknown priority %q", in.Priority), nil)
		}
		priority = p
	}
	if in.ReceiverID > 0 {
		if err := s.requireActiveUser(ctx, in.ReceiverID, "receiver"); err != nil {
			return nil, err
		}
	}

	corr := &store.Correspondence{
		Number:     strings.TrimSpace(in.Number),
		Type:       corrType,
		Subject:    subject,
		Content:    in.Content,
		Priority:   priority,
		SenderID:   actor.ID,
		SenderType: directory.Placement(actor),
		ReceiverID: in.ReceiverID,
		Date:       s.clock().UTC(),
		DueDate:    in.DueDate,
	}
	switch corr.SenderType {
	case lifecycle.PlacementDivision:
		corr.SenderDivisionID = actor.DivisionID
		corr.SenderDepartmentID = actor.DepartmentID
	case lifecycle.PlacementDepartment:
		corr.SenderDepartmentID = actor.DepartmentID
	case lifecycle.PlacementSchool:
		corr.SenderSchoolID = actor.SchoolID
	}
	return corr, nil
}

func (s *Service) requireActiveUser(ctx context.Context, userID int64, role string) error {
	user, err := s.dir.User(ctx, userID)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "correspondence", "create", role+" lookup failed", err)
	}
	if user == nil || !user.Active {
		return services.Wrap(services.ErrValidation, "correspondence", "create",
			fmt.Sprintf("%s %d is not an active user", role, userID), nil)
	}
	return nil
}

func (s *Service) normalizeCC(ctx context.Context, in []store.CCRecipient) ([]store.CCRecipient, error) {
	out := make([]store.CCRecipient, 0, len(in))
	for _, cc := range in {
		cc.Type = strings.ToLower(strings.TrimSpace(cc.Type))
		cc.Name = strings.TrimSpace(cc.Name)
		switch cc.Type {
		case store.CCTypeUser:
			if cc.RecipientID <= 0 {
				return nil, services.Wrap(services.ErrValidation, "correspondence", "create", "cc user requires a recipient id", nil)
			}
			if err := s.requireActiveUser(ctx, cc.RecipientID, "cc recipient"); err != nil {
				return nil, err
			}
		case "":
			return nil, services.Wrap(services.ErrValidation, "correspondence", "create", "cc type is required", nil)
		default:
			if cc.Name == "" {
				return nil, services.Wrap(services.ErrValidation, "correspondence", "create",
					fmt.Sprintf("cc of type %q requires a name", cc.Type), nil)
			}
		}
		out = append(out, cc)
	}
	return out, nil
}

func normalizeAttachments(in []store.Attachment, uploader int64) ([]store.Attachment, error) {
	out := make([]store.Attachment, 0, len(in))
	for _, a := range in {
		a.FileName = strings.TrimSpace(a.FileName)
		a.FilePath = strings.TrimSpace(a.FilePath)
		if a.FileName == "" || a.FilePath == "" {
			return nil, services.Wrap(services.ErrValidation, "correspondence", "create", "attachment name and path are required", nil)
		}
		if a.FileSize < 0 {
			return nil, services.Wrap(services.ErrValidation, "correspondence", "create", "attachment size must not be negative", nil)
		}
		if a.UploadedBy == 0 {
			a.UploadedBy = uploader
		}
		out = append(out, a)
	}
	return out, nil
}

// referenceAssigner returns the transactional step that numbers a new row.
// A manual reference of the form "<n>/<year>" raises that year's counter so
// later automatic numbers skip past it.
func (s *Service) referenceAssigner(manual string) func(context.Context, *store.Tx, *store.Correspondence) error {
	manual = strings.TrimSpace(manual)
	return func(ctx context.Context, tx *store.Tx, corr *store.Correspondence) error {
		if manual != "" {
			corr.Number = manual
			corr.RefSeq, corr.RefYear = 0, 0
			if seq, year, ok := refnum.Parse(manual); ok {
				corr.RefSeq, corr.RefYear = seq, year
				return tx.ReserveManualReference(ctx, seq, year)
			}
			return nil
		}
		year := s.clock().Year()
		seq, err := tx.AllocateReference(ctx, year)
		if err != nil {
			return err
		}
		corr.Number = refnum.Format(seq, year)
		corr.RefSeq, corr.RefYear = seq, year
		return nil
	}
}

// wrapStore keeps classified store errors and marks the rest as persistence
// failures.
func wrapStore(op string, err error) error {
	if services.KindOf(err) != services.KindInternal {
		return err
	}
	return services.Wrap(services.ErrPersistence, "correspondence", op, "store operation failed", err)
}
