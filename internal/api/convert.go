package api

import (
	"sort"
	"time"

	"corrflow/internal/correspondence"
	"corrflow/internal/directory"
	"corrflow/internal/effects"
	"corrflow/internal/store"
	"corrflow/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromCorrespondence converts a store correspondence into its API representation.
func FromCorrespondence(c *store.Correspondence) Correspondence {
	if c == nil {
		return Correspondence{}
	}
	return Correspondence{
		ID:                 c.ID,
		Number:             c.Number,
		Type:               c.Type,
		Subject:            c.Subject,
		Content:            c.Content,
		Priority:           string(c.Priority),
		Status:             string(c.Status),
		SenderID:           c.SenderID,
		SenderName:         c.SenderName,
		SenderType:         string(c.SenderType),
		SenderDivisionID:   c.SenderDivisionID,
		SenderDepartmentID: c.SenderDepartmentID,
		SenderSchoolID:     c.SenderSchoolID,
		ReceiverID:         c.ReceiverID,
		ReceiverName:       c.ReceiverName,
		CurrentHandlerID:   c.CurrentHandlerID,
		HandlerName:        c.HandlerName,
		Date:               formatTime(c.Date),
		DueDate:            formatTimePtr(c.DueDate),
		Archived:           c.Archived,
		ArchivedAt:         formatTimePtr(c.ArchivedAt),
		ArchivedBy:         c.ArchivedBy,
		AttachmentsCount:   c.AttachmentsCount,
		CreatedAt:          formatTime(c.CreatedAt),
		UpdatedAt:          formatTime(c.UpdatedAt),
	}
}

// FromCorrespondences converts a listing, omitting content bodies.
func FromCorrespondences(items []*store.Correspondence, page store.Page) CorrespondenceList {
	out := CorrespondenceList{
		Items:      make([]Correspondence, 0, len(items)),
		Pagination: FromPage(page),
	}
	for _, item := range items {
		dto := FromCorrespondence(item)
		dto.Content = ""
		out.Items = append(out.Items, dto)
	}
	return out
}

// FromPage converts pagination metadata.
func FromPage(p store.Page) Page {
	return Page{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages()}
}

// FromStage converts a stage. Signature bytes are reported by presence only.
func FromStage(s *store.Stage) Stage {
	if s == nil {
		return Stage{}
	}
	return Stage{
		ID:                s.ID,
		Name:              s.Name,
		Kind:              string(s.Kind),
		Order:             s.Order,
		AssignedTo:        s.AssignedTo,
		AssigneeName:      s.AssigneeName,
		Status:            string(s.Status),
		RequiresSignature: s.RequiresSignature,
		Decision:          s.Decision,
		Notes:             s.Notes,
		CompletedAt:       formatTimePtr(s.CompletedAt),
		HasSignature:      s.SignatureData != "",
	}
}

// FromStages converts an ordered chain.
func FromStages(stages []*store.Stage) []Stage {
	out := make([]Stage, 0, len(stages))
	for _, s := range stages {
		out = append(out, FromStage(s))
	}
	return out
}

// FromSignatures converts signature rows.
func FromSignatures(sigs []store.Signature) []Signature {
	out := make([]Signature, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, Signature{
			ID:            s.ID,
			StageID:       s.StageID,
			UserID:        s.UserID,
			SignerName:    s.SignerName,
			RoleName:      s.RoleName,
			Decision:      s.Decision,
			SignatureData: s.SignatureData,
			SignedAt:      formatTime(s.SignedAt),
		})
	}
	return out
}

// FromAttachments converts attachment metadata.
func FromAttachments(items []store.Attachment) []Attachment {
	out := make([]Attachment, 0, len(items))
	for _, a := range items {
		out = append(out, Attachment{
			ID:         a.ID,
			FileName:   a.FileName,
			FilePath:   a.FilePath,
			FileSize:   a.FileSize,
			FileType:   a.FileType,
			UploadedBy: a.UploadedBy,
			UploadedAt: formatTime(a.UploadedAt),
		})
	}
	return out
}

// FromComments converts comments.
func FromComments(items []store.Comment) []Comment {
	out := make([]Comment, 0, len(items))
	for _, c := range items {
		out = append(out, Comment{
			ID:         c.ID,
			UserID:     c.UserID,
			AuthorName: c.AuthorName,
			RoleName:   c.RoleName,
			Text:       c.Text,
			CreatedAt:  formatTime(c.CreatedAt),
		})
	}
	return out
}

// FromCC converts carbon-copy entries.
func FromCC(items []store.CCRecipient) []CCRecipient {
	out := make([]CCRecipient, 0, len(items))
	for _, c := range items {
		out = append(out, CCRecipient{Type: c.Type, RecipientID: c.RecipientID, Name: c.Name})
	}
	return out
}

// FromDetail converts a full correspondence view.
func FromDetail(d *correspondence.Detail) CorrespondenceDetail {
	if d == nil {
		return CorrespondenceDetail{}
	}
	return CorrespondenceDetail{
		Correspondence: FromCorrespondence(d.Correspondence),
		Stages:         FromStages(d.Stages),
		Signatures:     FromSignatures(d.Signatures),
		Attachments:    FromAttachments(d.Attachments),
		Comments:       FromComments(d.Comments),
		CC:             FromCC(d.CC),
	}
}

// FromCreated converts the result of Create or SubmitDraft.
func FromCreated(c correspondence.Created) CreateResponse {
	return CreateResponse{ID: c.ID, Number: c.Number, Status: string(c.Status), Handler: c.Handler}
}

// FromSignResult converts the outcome of a decision.
func FromSignResult(r workflow.SignResult) SignResponse {
	return SignResponse{
		CorrespondenceID: r.CorrespondenceID,
		Decision:         string(r.Decision),
		Label:            r.Label,
		StageID:          r.Stage.ID,
		StageName:        r.Stage.Name,
		Status:           string(r.Status),
		NextHandler:      r.NextHandler,
		Terminal:         r.Terminal,
	}
}

// FromNotifications converts an inbox listing.
func FromNotifications(items []store.Notification, unread int) NotificationList {
	out := NotificationList{Items: make([]Notification, 0, len(items)), Unread: unread}
	for _, n := range items {
		out.Items = append(out.Items, FromNotification(n))
	}
	return out
}

// FromNotification converts one inbox entry.
func FromNotification(n store.Notification) Notification {
	return Notification{
		ID:          n.ID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		RelatedID:   n.RelatedID,
		RelatedType: n.RelatedType,
		Read:        n.Read,
		CreatedAt:   formatTime(n.CreatedAt),
	}
}

// FromAudit converts a page of the audit trail.
func FromAudit(items []store.AuditEntry, page store.Page) AuditList {
	out := AuditList{Items: make([]AuditEntry, 0, len(items)), Pagination: FromPage(page)}
	for _, e := range items {
		out.Items = append(out.Items, AuditEntry{
			ID:         e.ID,
			UserID:     e.UserID,
			UserName:   e.UserName,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Details:    e.Details,
			IPAddress:  e.IPAddress,
			CreatedAt:  formatTime(e.CreatedAt),
		})
	}
	return out
}

// FromStatistics converts aggregate counters. Map keys are the enum strings.
func FromStatistics(s store.Statistics) Statistics {
	out := Statistics{
		Total:       s.Total,
		ByStatus:    make(map[string]int, len(s.ByStatus)),
		ByPriority:  make(map[string]int, len(s.ByPriority)),
		Today:       s.Today,
		ThisMonth:   s.ThisMonth,
		Overdue:     s.Overdue,
		TopSenders:  make([]SenderCount, 0, len(s.TopSenders)),
		PendingMine: s.PendingMine,
	}
	for k, v := range s.ByStatus {
		out.ByStatus[string(k)] = v
	}
	for k, v := range s.ByPriority {
		out.ByPriority[string(k)] = v
	}
	for _, sc := range s.TopSenders {
		out.TopSenders = append(out.TopSenders, SenderCount{UserID: sc.UserID, FullName: sc.FullName, Count: sc.Count})
	}
	return out
}

// FromUserStatistics converts per-user counters.
func FromUserStatistics(userID int64, s store.UserStatistics) UserStatistics {
	return UserStatistics{
		UserID:     userID,
		Sent:       s.Sent,
		Received:   s.Received,
		Signatures: s.Signatures,
		Pending:    s.Pending,
	}
}

// FromHealth converts database diagnostics into a readiness report.
func FromHealth(h store.DatabaseHealth) Health {
	status := "ok"
	if h.Error != "" || !h.DatabaseReadable || len(h.MissingTables) > 0 || !h.IntegrityCheck {
		status = "degraded"
	}
	missing := append([]string(nil), h.MissingTables...)
	sort.Strings(missing)
	return Health{
		Status:        status,
		SchemaVersion: h.SchemaVersion,
		MissingTables: missing,
		Integrity:     h.IntegrityCheck,
		Detail:        h.Error,
	}
}

// FromEffectsStats converts dispatcher counters.
func FromEffectsStats(s effects.Stats) EffectsStats {
	return EffectsStats{
		Queued:    s.Queued,
		Completed: s.Completed,
		Failed:    s.Failed,
		Dropped:   s.Dropped,
		Pending:   s.Pending,
		Workers:   s.Workers,
	}
}

// FromCacheStats converts directory cache counters.
func FromCacheStats(s directory.CacheStats) CacheStats {
	return CacheStats{Hits: s.Hits, Misses: s.Misses, Evictions: s.Evictions, Size: s.Size}
}
