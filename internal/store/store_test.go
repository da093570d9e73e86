package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"corrflow/internal/lifecycle"
	"corrflow/internal/services"
	"corrflow/internal/store"
	"corrflow/internal/testsupport"
)

func newCorrespondence(org testsupport.Org, number string, status lifecycle.Status) *store.Correspondence {
	return &store.Correspondence{
		Number:             number,
		Type:               "صادر",
		Subject:            "Budget request " + number,
		Priority:           lifecycle.PriorityNormal,
		Status:             status,
		SenderID:           org.Sender,
		SenderType:         lifecycle.PlacementDivision,
		SenderDivisionID:   org.DivisionID,
		SenderDepartmentID: org.DepartmentID,
		ReceiverID:         org.Final,
	}
}

func threeStages(org testsupport.Org) []store.NewStage {
	return []store.NewStage{
		{Name: "division", Kind: store.StageKindDivision, Order: 1, AssignedTo: org.DivManager, Status: lifecycle.StagePending},
		{Name: "department", Kind: store.StageKindDepartment, Order: 2, AssignedTo: org.DeptManager, Status: lifecycle.StageWaiting},
		{Name: "final", Kind: store.StageKindFinal, Order: 3, AssignedTo: org.Final, Status: lifecycle.StageWaiting, RequiresSignature: true},
	}
}

func insertSubmitted(t *testing.T, st *store.Store, org testsupport.Org, number string) int64 {
	t.Helper()
	var id int64
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		corr := newCorrespondence(org, number, lifecycle.StatusPending)
		corr.CurrentHandlerID = org.DivManager
		var err error
		if id, err = tx.InsertCorrespondence(context.Background(), corr); err != nil {
			return err
		}
		return tx.InsertStages(context.Background(), id, threeStages(org))
	})
	if err != nil {
		t.Fatalf("insert submitted correspondence: %v", err)
	}
	return id
}

func insertDraft(t *testing.T, st *store.Store, org testsupport.Org, number string) int64 {
	t.Helper()
	var id int64
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		id, err = tx.InsertCorrespondence(context.Background(), newCorrespondence(org, number, lifecycle.StatusDraft))
		return err
	})
	if err != nil {
		t.Fatalf("insert draft: %v", err)
	}
	return id
}

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %#v", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("missing tables: %v", health.MissingTables)
	}
	if health.SchemaVersion != 1 {
		t.Fatalf("expected schema version 1, got %d", health.SchemaVersion)
	}
	if len(health.Migrations) != 2 {
		t.Fatalf("expected 2 migrations applied, got %v", health.Migrations)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	org := testsupport.SeedOrg(t, st)
	id := insertDraft(t, st, org, "1/2026")
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	st = testsupport.MustOpenStore(t, cfg)
	corr, err := st.GetCorrespondence(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if corr == nil || corr.Number != "1/2026" {
		t.Fatalf("unexpected correspondence after reopen: %#v", corr)
	}
}

func TestGetCorrespondenceJoinsNames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	id := insertSubmitted(t, st, org, "7/2026")

	corr, err := st.GetCorrespondence(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if corr.SenderName != "Sender Employee" || corr.ReceiverName != "Final Signatory" || corr.HandlerName != "Division Manager" {
		t.Fatalf("unexpected names: %q %q %q", corr.SenderName, corr.ReceiverName, corr.HandlerName)
	}
	if corr.Status != lifecycle.StatusPending {
		t.Fatalf("expected pending, got %s", corr.Status)
	}

	missing, err := st.GetCorrespondence(context.Background(), id+100)
	if err != nil {
		t.Fatalf("GetCorrespondence missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing row, got %#v", missing)
	}
}

func TestAllocateReferenceContinuesFromLastNumber(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		corr := newCorrespondence(org, "41/2026", lifecycle.StatusDraft)
		corr.RefSeq, corr.RefYear = 41, 2026
		_, err := tx.InsertCorrespondence(ctx, corr)
		return err
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var got []int
	for i := 0; i < 2; i++ {
		if err := st.WithTx(ctx, func(tx *store.Tx) error {
			seq, err := tx.AllocateReference(ctx, 2026)
			got = append(got, seq)
			return err
		}); err != nil {
			t.Fatalf("AllocateReference failed: %v", err)
		}
	}
	if got[0] != 42 || got[1] != 43 {
		t.Fatalf("expected 42 then 43, got %v", got)
	}

	var other int
	if err := st.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		other, err = tx.AllocateReference(ctx, 2027)
		return err
	}); err != nil {
		t.Fatalf("AllocateReference failed: %v", err)
	}
	if other != 1 {
		t.Fatalf("expected a new year to start at 1, got %d", other)
	}
}

func TestReserveManualReferenceRaisesCounter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	allocate := func() int {
		var seq int
		if err := st.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			seq, err = tx.AllocateReference(ctx, 2026)
			return err
		}); err != nil {
			t.Fatalf("AllocateReference failed: %v", err)
		}
		return seq
	}
	reserve := func(seq int) {
		if err := st.WithTx(ctx, func(tx *store.Tx) error {
			return tx.ReserveManualReference(ctx, seq, 2026)
		}); err != nil {
			t.Fatalf("ReserveManualReference failed: %v", err)
		}
	}

	reserve(100)
	if seq := allocate(); seq != 101 {
		t.Fatalf("expected 101 after manual 100, got %d", seq)
	}
	reserve(5)
	if seq := allocate(); seq != 102 {
		t.Fatalf("expected lower manual number to leave the counter alone, got %d", seq)
	}
}

func TestDuplicateReferenceIsConflict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	insertDraft(t, st, org, "9/2026")

	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		_, err := tx.InsertCorrespondence(context.Background(), newCorrespondence(org, "9/2026", lifecycle.StatusDraft))
		return err
	})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCompleteStageAppliesOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	id := insertSubmitted(t, st, org, "1/2026")
	ctx := context.Background()

	var stageID int64
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		stage, err := tx.PendingStageFor(ctx, id, org.DivManager)
		if err != nil {
			return err
		}
		if stage == nil {
			t.Fatal("expected a pending stage for the division manager")
		}
		stageID = stage.ID
		return tx.CompleteStage(ctx, stage.ID, org.DivManager, lifecycle.StageApproved, "approved", "ok")
	})
	if err != nil {
		t.Fatalf("CompleteStage failed: %v", err)
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.CompleteStage(ctx, stageID, org.DivManager, lifecycle.StageApproved, "approved", "again")
	})
	if !errors.Is(err, store.ErrStaleState) {
		t.Fatalf("expected ErrStaleState on second completion, got %v", err)
	}

	stages, err := st.Stages(ctx, id)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	if stages[0].Status != lifecycle.StageApproved || stages[0].Notes != "ok" || stages[0].CompletedAt == nil {
		t.Fatalf("unexpected first stage: %#v", stages[0])
	}
}

func TestCompleteStageRejectsWrongAssignee(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	id := insertSubmitted(t, st, org, "1/2026")
	ctx := context.Background()

	stages, err := st.Stages(ctx, id)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	err = st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.CompleteStage(ctx, stages[0].ID, org.Outsider, lifecycle.StageApproved, "approved", "")
	})
	if !errors.Is(err, store.ErrStaleState) {
		t.Fatalf("expected ErrStaleState for wrong assignee, got %v", err)
	}
}

func TestActivateStageRequiresWaiting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	id := insertSubmitted(t, st, org, "1/2026")
	ctx := context.Background()

	stages, err := st.Stages(ctx, id)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	// Stage 1 is still pending, so activating stage 2 would create a second
	// pending stage; the partial unique index refuses it.
	err = st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ActivateStage(ctx, stages[1].ID)
	})
	if err == nil {
		t.Fatal("expected second pending stage to be refused")
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ActivateStage(ctx, stages[0].ID)
	})
	if !errors.Is(err, store.ErrStaleState) {
		t.Fatalf("expected ErrStaleState activating a pending stage, got %v", err)
	}
}

func TestNextStageWalksOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	id := insertSubmitted(t, st, org, "1/2026")
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		next, err := tx.NextStage(ctx, id, 1)
		if err != nil {
			return err
		}
		if next == nil || next.Order != 2 || next.AssignedTo != org.DeptManager {
			t.Fatalf("unexpected next stage after 1: %#v", next)
		}
		last, err := tx.NextStage(ctx, id, 3)
		if err != nil {
			return err
		}
		if last != nil {
			t.Fatalf("expected no stage after the last, got %#v", last)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("NextStage failed: %v", err)
	}
}

func TestTransitionCorrespondenceChecksPriorStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	id := insertSubmitted(t, st, org, "1/2026")
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.TransitionCorrespondence(ctx, id, lifecycle.StatusApproved, lifecycle.StatusPending, 0)
	})
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.TransitionCorrespondence(ctx, id, lifecycle.StatusDraft, lifecycle.StatusPending, 0)
	})
	if !errors.Is(err, store.ErrStaleState) {
		t.Fatalf("expected ErrStaleState for wrong prior status, got %v", err)
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.TransitionCorrespondence(ctx, id, lifecycle.StatusPending, lifecycle.StatusRejected, 0)
	})
	if err != nil {
		t.Fatalf("TransitionCorrespondence failed: %v", err)
	}
	corr, err := st.GetCorrespondence(ctx, id)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if corr.Status != lifecycle.StatusRejected || corr.CurrentHandlerID != org.DivManager {
		t.Fatalf("unexpected correspondence: status=%s handler=%d", corr.Status, corr.CurrentHandlerID)
	}
}

func TestRecordSignatureCopiesStoredImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	id := insertSubmitted(t, st, org, "1/2026")
	ctx := context.Background()

	stages, err := st.Stages(ctx, id)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	err = st.WithTx(ctx, func(tx *store.Tx) error {
		_, err := tx.RecordSignature(ctx, id, stages[2].ID, org.Final, "approved")
		return err
	})
	if err != nil {
		t.Fatalf("RecordSignature failed: %v", err)
	}

	sigs, err := st.Signatures(ctx, id)
	if err != nil {
		t.Fatalf("Signatures failed: %v", err)
	}
	if len(sigs) != 1 || sigs[0].SignatureData != testsupport.FinalSignature || sigs[0].SignerName != "Final Signatory" {
		t.Fatalf("unexpected signatures: %#v", sigs)
	}
	byUser, err := st.SignaturesByUser(ctx, org.Final)
	if err != nil {
		t.Fatalf("SignaturesByUser failed: %v", err)
	}
	if len(byUser) != 1 || byUser[0].CorrNumber != "1/2026" {
		t.Fatalf("unexpected signatures by user: %#v", byUser)
	}
	stages, err = st.Stages(ctx, id)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	if stages[2].SignatureData != testsupport.FinalSignature {
		t.Fatalf("expected stage projection to carry signature, got %q", stages[2].SignatureData)
	}
}

func TestUpdateDraftOnlyWhileDraft(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()

	draftID := insertDraft(t, st, org, "2/2026")
	subject := "Revised subject"
	urgent := lifecycle.PriorityUrgent
	if err := st.UpdateDraft(ctx, draftID, store.DraftPatch{Subject: &subject, Priority: &urgent}); err != nil {
		t.Fatalf("UpdateDraft failed: %v", err)
	}
	corr, err := st.GetCorrespondence(ctx, draftID)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if corr.Subject != subject || corr.Priority != lifecycle.PriorityUrgent {
		t.Fatalf("draft not updated: %#v", corr)
	}

	pendingID := insertSubmitted(t, st, org, "3/2026")
	err = st.UpdateDraft(ctx, pendingID, store.DraftPatch{Subject: &subject})
	if !errors.Is(err, store.ErrStaleState) {
		t.Fatalf("expected ErrStaleState editing a pending correspondence, got %v", err)
	}
}

func TestArchiveKeepsRunningChainSignable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()

	draftID := insertDraft(t, st, org, "1/2026")
	pendingID := insertSubmitted(t, st, org, "2/2026")

	for _, id := range []int64{draftID, pendingID} {
		changed, err := st.Archive(ctx, id, org.Admin)
		if err != nil {
			t.Fatalf("Archive failed: %v", err)
		}
		if !changed {
			t.Fatalf("expected archive of %d to change the row", id)
		}
	}

	draft, err := st.GetCorrespondence(ctx, draftID)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if draft.Status != lifecycle.StatusArchived || !draft.Archived || draft.ArchivedAt == nil || draft.ArchivedBy != org.Admin {
		t.Fatalf("unexpected archived draft: %#v", draft)
	}
	pending, err := st.GetCorrespondence(ctx, pendingID)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if pending.Status != lifecycle.StatusPending || !pending.Archived {
		t.Fatalf("expected archived pending correspondence to stay pending: %#v", pending)
	}

	changed, err := st.Archive(ctx, draftID, org.Admin)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if changed {
		t.Fatal("expected second archive to be a no-op")
	}
}

func TestDeleteCascadesChildren(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()
	id := insertSubmitted(t, st, org, "1/2026")

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertCC(ctx, id, []store.CCRecipient{{Type: store.CCTypeUser, RecipientID: org.CCUser}}); err != nil {
			return err
		}
		return tx.InsertAttachments(ctx, id, []store.Attachment{{FileName: "memo.pdf", FilePath: "uploads/memo.pdf", FileSize: 2048}})
	})
	if err != nil {
		t.Fatalf("insert children failed: %v", err)
	}
	if _, err := st.AddComment(ctx, id, org.Sender, "please review"); err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}

	deleted, err := st.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report a removed row")
	}
	stages, err := st.Stages(ctx, id)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	cc, err := st.CCRecipients(ctx, id)
	if err != nil {
		t.Fatalf("CCRecipients failed: %v", err)
	}
	attachments, err := st.Attachments(ctx, id)
	if err != nil {
		t.Fatalf("Attachments failed: %v", err)
	}
	comments, err := st.Comments(ctx, id)
	if err != nil {
		t.Fatalf("Comments failed: %v", err)
	}
	if len(stages)+len(cc)+len(attachments)+len(comments) != 0 {
		t.Fatalf("expected cascade, got %d stages %d cc %d attachments %d comments",
			len(stages), len(cc), len(attachments), len(comments))
	}
}

func TestListCorrespondencesFiltersAndPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()

	for _, number := range []string{"1/2026", "2/2026", "3/2026"} {
		insertSubmitted(t, st, org, number)
	}
	insertDraft(t, st, org, "4/2026")

	items, page, err := st.ListCorrespondences(ctx, store.ListFilter{Status: lifecycle.StatusPending, Limit: 2})
	if err != nil {
		t.Fatalf("ListCorrespondences failed: %v", err)
	}
	if page.Total != 3 || page.Pages() != 2 || len(items) != 2 {
		t.Fatalf("unexpected page: %#v with %d items", page, len(items))
	}

	items, _, err = st.ListCorrespondences(ctx, store.ListFilter{Search: "4/2026"})
	if err != nil {
		t.Fatalf("ListCorrespondences search failed: %v", err)
	}
	if len(items) != 1 || items[0].Status != lifecycle.StatusDraft {
		t.Fatalf("unexpected search result: %#v", items)
	}

	items, page, err = st.ListCorrespondences(ctx, store.ListFilter{VisibleTo: org.Outsider})
	if err != nil {
		t.Fatalf("ListCorrespondences visibility failed: %v", err)
	}
	if page.Total != 0 || len(items) != 0 {
		t.Fatalf("expected outsider to see nothing, got %d", page.Total)
	}

	_, page, err = st.ListCorrespondences(ctx, store.ListFilter{VisibleTo: org.DeptManager})
	if err != nil {
		t.Fatalf("ListCorrespondences visibility failed: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected later-stage assignee to see 3 chains, got %d", page.Total)
	}
}

func TestNotificationInbox(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := st.InsertNotification(ctx, store.Notification{
			UserID: org.DeptManager, Type: "approval_needed", Title: "Approval needed", RelatedID: 1, RelatedType: "correspondence",
		})
		if err != nil {
			t.Fatalf("InsertNotification failed: %v", err)
		}
		ids = append(ids, id)
	}

	ok, err := st.MarkNotificationRead(ctx, ids[0], org.Outsider)
	if err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	if ok {
		t.Fatal("expected another user's notification to be untouched")
	}
	if ok, err = st.MarkNotificationRead(ctx, ids[0], org.DeptManager); err != nil || !ok {
		t.Fatalf("MarkNotificationRead = %v, %v", ok, err)
	}
	unread, err := st.UnreadCount(ctx, org.DeptManager)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if unread != 2 {
		t.Fatalf("expected 2 unread, got %d", unread)
	}
	changed, err := st.MarkAllNotificationsRead(ctx, org.DeptManager)
	if err != nil {
		t.Fatalf("MarkAllNotificationsRead failed: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 changed, got %d", changed)
	}
	list, err := st.Notifications(ctx, org.DeptManager)
	if err != nil {
		t.Fatalf("Notifications failed: %v", err)
	}
	if len(list) != 3 || !list[0].Read || list[0].ID != ids[2] {
		t.Fatalf("unexpected inbox: %#v", list)
	}
}

func TestAuditEntriesPaginate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := st.InsertAudit(ctx, store.AuditEntry{
			UserID: org.Sender, Action: "CREATE", EntityType: "correspondence", EntityID: int64(i + 1), Details: `{"n":1}`,
		}); err != nil {
			t.Fatalf("InsertAudit failed: %v", err)
		}
	}
	entries, page, err := st.AuditEntries(ctx, 2, 2)
	if err != nil {
		t.Fatalf("AuditEntries failed: %v", err)
	}
	if page.Total != 5 || page.Pages() != 3 || len(entries) != 2 {
		t.Fatalf("unexpected audit page: %#v, %d entries", page, len(entries))
	}
	if entries[0].EntityID != 3 || entries[0].UserName != "Sender Employee" {
		t.Fatalf("unexpected audit entry: %#v", entries[0])
	}
}

func TestStatistics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()

	insertSubmitted(t, st, org, "1/2026")
	insertSubmitted(t, st, org, "2/2026")
	insertDraft(t, st, org, "3/2026")

	stats, err := st.Statistics(ctx, org.DivManager)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Total != 3 || stats.ByStatus[lifecycle.StatusPending] != 2 || stats.ByStatus[lifecycle.StatusDraft] != 1 {
		t.Fatalf("unexpected totals: %#v", stats)
	}
	if stats.Today != 3 || stats.ThisMonth != 3 {
		t.Fatalf("expected all rows created today, got today=%d month=%d", stats.Today, stats.ThisMonth)
	}
	if stats.PendingMine != 2 {
		t.Fatalf("expected 2 stages awaiting the division manager, got %d", stats.PendingMine)
	}
	if len(stats.TopSenders) != 1 || stats.TopSenders[0].UserID != org.Sender || stats.TopSenders[0].Count != 3 {
		t.Fatalf("unexpected top senders: %#v", stats.TopSenders)
	}

	user, err := st.UserStatistics(ctx, org.Final)
	if err != nil {
		t.Fatalf("UserStatistics failed: %v", err)
	}
	if user.Received != 3 || user.Sent != 0 || user.Pending != 0 {
		t.Fatalf("unexpected user statistics: %#v", user)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()

	sentinel := errors.New("boom")
	var id int64
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		if id, err = tx.InsertCorrespondence(ctx, newCorrespondence(org, "1/2026", lifecycle.StatusPending)); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	corr, err := st.GetCorrespondence(ctx, id)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if corr != nil {
		t.Fatalf("expected rolled back header to be invisible, got %#v", corr)
	}
}

func TestDueDateRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	ctx := context.Background()

	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var id int64
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		corr := newCorrespondence(org, "1/2026", lifecycle.StatusDraft)
		corr.DueDate = &due
		var err error
		id, err = tx.InsertCorrespondence(ctx, corr)
		return err
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	corr, err := st.GetCorrespondence(ctx, id)
	if err != nil {
		t.Fatalf("GetCorrespondence failed: %v", err)
	}
	if corr.DueDate == nil || !corr.DueDate.Equal(due) {
		t.Fatalf("unexpected due date: %v", corr.DueDate)
	}
}
