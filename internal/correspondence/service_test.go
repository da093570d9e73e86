package correspondence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"corrflow/internal/correspondence"
	"corrflow/internal/directory"
	"corrflow/internal/lifecycle"
	"corrflow/internal/logging"
	"corrflow/internal/services"
	"corrflow/internal/store"
	"corrflow/internal/testsupport"
	"corrflow/internal/workflow"
)

var fixedNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store  *store.Store
	org    testsupport.Org
	engine *workflow.Engine
	svc    *correspondence.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	dir := directory.NewSQLDirectory(st)
	engine := workflow.NewEngine(cfg, st, dir, logging.NewNop())
	svc := correspondence.NewService(cfg, st, dir, engine, logging.NewNop(),
		correspondence.WithClock(func() time.Time { return fixedNow }))
	return &fixture{store: st, org: org, engine: engine, svc: svc}
}

func (f *fixture) create(t *testing.T, actor int64, in correspondence.CreateInput) correspondence.Created {
	t.Helper()
	out, err := f.svc.Create(context.Background(), actor, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return out
}

func (f *fixture) auditActions(t *testing.T) []string {
	t.Helper()
	entries, _, err := f.store.AuditEntries(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("AuditEntries failed: %v", err)
	}
	actions := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		actions = append(actions, entries[i].Action)
	}
	return actions
}

func TestCreateAllocatesSequentialReferences(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, f.org.Sender, correspondence.CreateInput{Subject: "أول", ReceiverID: f.org.Final})
	second := f.create(t, f.org.Sender, correspondence.CreateInput{Subject: "ثاني", ReceiverID: f.org.Final})
	if first.Number != "1/2026" || second.Number != "2/2026" {
		t.Fatalf("unexpected references %q, %q", first.Number, second.Number)
	}
	if first.Status != lifecycle.StatusPending || first.Handler != f.org.DivManager {
		t.Fatalf("unexpected creation result %+v", first)
	}

	got, err := f.store.GetCorrespondence(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if got.SenderType != lifecycle.PlacementDivision || got.SenderDivisionID != f.org.DivisionID ||
		got.SenderDepartmentID != f.org.DepartmentID {
		t.Fatalf("placement not resolved: %+v", got)
	}
	if got.Priority != lifecycle.PriorityNormal || got.Type == "" || got.RefSeq != 1 || got.RefYear != 2026 {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestManualReferenceRaisesCounter(t *testing.T) {
	f := newFixture(t)
	manual := f.create(t, f.org.Sender, correspondence.CreateInput{Number: "41/2026", Subject: "يدوي", ReceiverID: f.org.Final})
	if manual.Number != "41/2026" {
		t.Fatalf("manual reference not kept: %q", manual.Number)
	}
	next := f.create(t, f.org.Sender, correspondence.CreateInput{Subject: "تلقائي", ReceiverID: f.org.Final})
	if next.Number != "42/2026" {
		t.Fatalf("expected 42/2026 after 41/2026, got %q", next.Number)
	}

	free := f.create(t, f.org.Sender, correspondence.CreateInput{Number: "OUT-7", Subject: "حر", ReceiverID: f.org.Final})
	if free.Number != "OUT-7" {
		t.Fatalf("free-form reference not kept: %q", free.Number)
	}

	_, err := f.svc.Create(context.Background(), f.org.Sender, correspondence.CreateInput{Number: "41/2026", Subject: "مكرر", ReceiverID: f.org.Final})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict for duplicate reference, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		actor int64
		in    correspondence.CreateInput
		want  error
	}{
		{"missing subject", f.org.Sender, correspondence.CreateInput{ReceiverID: f.org.Final}, services.ErrValidation},
		{"bad priority", f.org.Sender, correspondence.CreateInput{Subject: "x", Priority: "asap", ReceiverID: f.org.Final}, services.ErrValidation},
		{"unknown receiver", f.org.Sender, correspondence.CreateInput{Subject: "x", ReceiverID: 999}, services.ErrValidation},
		{"cc without id", f.org.Sender, correspondence.CreateInput{Subject: "x", ReceiverID: f.org.Final,
			CC: []store.CCRecipient{{Type: store.CCTypeUser}}}, services.ErrValidation},
		{"custom cc without name", f.org.Sender, correspondence.CreateInput{Subject: "x", ReceiverID: f.org.Final,
			CC: []store.CCRecipient{{Type: store.CCTypeCustom}}}, services.ErrValidation},
		{"attachment without path", f.org.Sender, correspondence.CreateInput{Subject: "x", ReceiverID: f.org.Final,
			Attachments: []store.Attachment{{FileName: "a.pdf"}}}, services.ErrValidation},
		{"unknown actor", 999, correspondence.CreateInput{Subject: "x", ReceiverID: f.org.Final}, services.ErrUnauthenticated},
		{"empty chain", f.org.Outsider, correspondence.CreateInput{Subject: "x"}, services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), tc.actor, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.create(t, f.org.Sender, correspondence.CreateInput{
		Subject:     "مسودة",
		ReceiverID:  f.org.Final,
		AsDraft:     true,
		Attachments: []store.Attachment{{FileName: "a.pdf", FilePath: "uploads/a.pdf", FileSize: 10}},
	})
	if draft.Status != lifecycle.StatusDraft || draft.Handler != 0 {
		t.Fatalf("unexpected draft %+v", draft)
	}
	stages, err := f.svc.Stages(ctx, f.org.Sender, draft.ID)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	if len(stages) != 0 {
		t.Fatalf("draft must not have stages, got %d", len(stages))
	}

	subject := "مسودة معدلة"
	priority := "urgent"
	if err := f.svc.UpdateDraft(ctx, f.org.Outsider, draft.ID, correspondence.DraftInput{Subject: &subject}); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected forbidden edit, got %v", err)
	}
	if err := f.svc.UpdateDraft(ctx, f.org.Sender, draft.ID, correspondence.DraftInput{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty patch, got %v", err)
	}
	if err := f.svc.UpdateDraft(ctx, f.org.Sender, draft.ID, correspondence.DraftInput{Subject: &subject, Priority: &priority}); err != nil {
		t.Fatalf("UpdateDraft failed: %v", err)
	}

	submitted, err := f.svc.SubmitDraft(ctx, f.org.Sender, draft.ID)
	if err != nil {
		t.Fatalf("SubmitDraft failed: %v", err)
	}
	if submitted.Status != lifecycle.StatusPending || submitted.Handler != f.org.DivManager || submitted.Number != draft.Number {
		t.Fatalf("unexpected submission %+v", submitted)
	}

	detail, err := f.svc.Get(ctx, f.org.Sender, draft.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if detail.Correspondence.Subject != subject || detail.Correspondence.Priority != lifecycle.PriorityUrgent {
		t.Fatalf("draft edits lost: %+v", detail.Correspondence)
	}
	if len(detail.Stages) != 3 || len(detail.Attachments) != 1 {
		t.Fatalf("unexpected detail: %d stages, %d attachments", len(detail.Stages), len(detail.Attachments))
	}
	if err := f.svc.UpdateDraft(ctx, f.org.Sender, draft.ID, correspondence.DraftInput{Subject: &subject}); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition after submission, got %v", err)
	}
	if _, err := f.svc.SubmitDraft(ctx, f.org.Sender, draft.ID); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on second submit, got %v", err)
	}

	want := []string{"CREATE", "UPDATE", "SUBMIT"}
	got := f.auditActions(t)
	if len(got) != len(want) {
		t.Fatalf("unexpected audit trail %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected audit trail %v", got)
		}
	}
}

func TestArchiveKeepsPendingChainSignable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.create(t, f.org.Sender, correspondence.CreateInput{Subject: "قيد الاعتماد", ReceiverID: f.org.Final})

	changed, err := f.svc.Archive(ctx, f.org.Sender, pending.ID)
	if err != nil || !changed {
		t.Fatalf("Archive failed: changed=%v err=%v", changed, err)
	}
	again, err := f.svc.Archive(ctx, f.org.Sender, pending.ID)
	if err != nil || again {
		t.Fatalf("second archive should be a no-op: changed=%v err=%v", again, err)
	}
	header, err := f.store.GetCorrespondence(ctx, pending.ID)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if !header.Archived || header.Status != lifecycle.StatusPending || header.ArchivedBy != f.org.Sender {
		t.Fatalf("unexpected archived header %+v", header)
	}
	if _, err := f.engine.Sign(ctx, workflow.SignRequest{CorrespondenceID: pending.ID, UserID: f.org.DivManager, Decision: "approved"}); err != nil {
		t.Fatalf("archived pending correspondence must stay signable: %v", err)
	}

	rejected := f.create(t, f.org.Sender, correspondence.CreateInput{Subject: "مرفوضة", ReceiverID: f.org.Final})
	if _, err := f.engine.Sign(ctx, workflow.SignRequest{CorrespondenceID: rejected.ID, UserID: f.org.DivManager, Decision: "مرفوض"}); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := f.svc.Archive(ctx, f.org.Outsider, rejected.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected forbidden archive, got %v", err)
	}
	if _, err := f.svc.Archive(ctx, f.org.DeptManager, rejected.ID); err != nil {
		t.Fatalf("manager archive failed: %v", err)
	}
	header, err = f.store.GetCorrespondence(ctx, rejected.ID)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if header.Status != lifecycle.StatusArchived {
		t.Fatalf("finished correspondence should be relabelled archived, got %s", header.Status)
	}
}

func TestDeleteRequiresManagerAndCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, f.org.Sender, correspondence.CreateInput{
		Subject:    "للحذف",
		ReceiverID: f.org.Final,
		CC:         []store.CCRecipient{{Type: store.CCTypeUser, RecipientID: f.org.CCUser}},
	})
	if _, err := f.svc.AddComment(ctx, f.org.Sender, created.ID, "ملاحظة"); err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}

	if err := f.svc.Delete(ctx, f.org.Sender, created.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.org.Admin, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.org.Admin, created.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.org.Admin, created.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	pending, err := f.store.PendingStagesFor(ctx, f.org.DivManager)
	if err != nil {
		t.Fatalf("PendingStagesFor failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("stages survived delete: %+v", pending)
	}
}

func TestVisibilityAndComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, f.org.Sender, correspondence.CreateInput{
		Subject:    "سري",
		ReceiverID: f.org.Final,
		CC:         []store.CCRecipient{{Type: store.CCTypeUser, RecipientID: f.org.CCUser}},
	})

	if _, err := f.svc.Get(ctx, f.org.Outsider, created.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected outsider to be forbidden, got %v", err)
	}
	for _, viewer := range []int64{f.org.Sender, f.org.Final, f.org.CCUser, f.org.DivManager, f.org.Admin} {
		if _, err := f.svc.Get(ctx, viewer, created.ID); err != nil {
			t.Fatalf("viewer %d: Get failed: %v", viewer, err)
		}
	}

	rows, page, err := f.svc.List(ctx, f.org.Outsider, correspondence.Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 0 || page.Total != 0 {
		t.Fatalf("outsider should see nothing, got %d", len(rows))
	}
	rows, _, err = f.svc.List(ctx, f.org.Admin, correspondence.Filter{Status: "pending"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 1 || rows[0].SenderName != "Sender Employee" || rows[0].HandlerName != "Division Manager" {
		t.Fatalf("unexpected listing %+v", rows)
	}
	if _, _, err := f.svc.List(ctx, f.org.Admin, correspondence.Filter{Status: "closed"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}

	if _, err := f.svc.AddComment(ctx, f.org.CCUser, created.ID, "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty comment, got %v", err)
	}
	if _, err := f.svc.AddComment(ctx, f.org.CCUser, created.ID, "اطلعت"); err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	comments, err := f.svc.Comments(ctx, f.org.Sender, created.ID)
	if err != nil {
		t.Fatalf("Comments failed: %v", err)
	}
	if len(comments) != 1 || comments[0].AuthorName != "Copy Recipient" {
		t.Fatalf("unexpected comments %+v", comments)
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, f.org.Sender, correspondence.CreateInput{Subject: "أ", ReceiverID: f.org.Final, Priority: "urgent"})
	f.create(t, f.org.SchoolUser, correspondence.CreateInput{Subject: "ب", ReceiverID: f.org.Final})
	if _, err := f.engine.Sign(ctx, workflow.SignRequest{CorrespondenceID: a.ID, UserID: f.org.DivManager, Decision: "مرفوض"}); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	stats, err := f.svc.Statistics(ctx, f.org.Final)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Total != 2 || stats.ByStatus[lifecycle.StatusRejected] != 1 || stats.ByStatus[lifecycle.StatusPending] != 1 {
		t.Fatalf("unexpected statistics %+v", stats)
	}
	if stats.ByPriority[lifecycle.PriorityUrgent] != 1 || stats.PendingMine != 1 {
		t.Fatalf("unexpected statistics %+v", stats)
	}

	if _, err := f.svc.UserStatistics(ctx, f.org.Sender, f.org.Final); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected forbidden user statistics, got %v", err)
	}
	mine, err := f.svc.UserStatistics(ctx, f.org.Sender, f.org.Sender)
	if err != nil {
		t.Fatalf("UserStatistics failed: %v", err)
	}
	if mine.Sent != 1 {
		t.Fatalf("unexpected user statistics %+v", mine)
	}
}
