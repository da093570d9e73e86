package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"corrflow/internal/effects"
	"corrflow/internal/services"
	"corrflow/internal/store"
)

// Action names written to audit_logs.action.
const (
	ActionCreate  = "CREATE"
	ActionUpdate  = "UPDATE"
	ActionSubmit  = "SUBMIT"
	ActionSign    = "SIGN"
	ActionArchive = "ARCHIVE"
	ActionDelete  = "DELETE"
	ActionComment = "COMMENT"
	ActionImport  = "IMPORT"
)

// Entity types.
const (
	EntityCorrespondence = "correspondence"
	EntityOrganization   = "organization"
)

// Entry describes one audited action. Details is marshalled to JSON.
type Entry struct {
	UserID     int64
	Action     string
	EntityType string
	EntityID   int64
	Details    map[string]any
	IPAddress  string
}

// Recorder writes audit entries.
type Recorder struct {
	store *store.Store
}

// NewRecorder returns a recorder backed by st.
func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{store: st}
}

// Record inserts e into the audit trail. The client address falls back to the
// one stamped on ctx by the HTTP layer.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if r == nil || r.store == nil {
		return nil
	}
	if strings.TrimSpace(e.Action) == "" || strings.TrimSpace(e.EntityType) == "" {
		return services.Wrap(services.ErrValidation, "audit", "record", "action and entity type are required", nil)
	}
	if e.IPAddress == "" {
		e.IPAddress, _ = services.ClientIPFromContext(ctx)
	}
	row := store.AuditEntry{
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		IPAddress:  e.IPAddress,
	}
	if len(e.Details) > 0 {
		data, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		row.Details = string(data)
	}
	if _, err := r.store.InsertAudit(ctx, row); err != nil {
		return services.Wrap(services.ErrPersistence, "audit", "record", "insert failed", err)
	}
	return nil
}

// Effect wraps Record so the entry is written after the surrounding
// transition commits.
func (r *Recorder) Effect(e Entry) effects.Effect {
	return effects.Effect{
		Name:             "audit:" + strings.ToLower(e.Action),
		CorrespondenceID: correspondenceID(e),
		Run: func(ctx context.Context) error {
			return r.Record(ctx, e)
		},
	}
}

// List returns one page of the audit trail, newest first.
func (r *Recorder) List(ctx context.Context, page, limit int) ([]store.AuditEntry, store.Page, error) {
	entries, p, err := r.store.AuditEntries(ctx, page, limit)
	if err != nil {
		return nil, store.Page{}, services.Wrap(services.ErrPersistence, "audit", "list", "query failed", err)
	}
	return entries, p, nil
}

func correspondenceID(e Entry) int64 {
	if e.EntityType == EntityCorrespondence {
		return e.EntityID
	}
	return 0
}
