package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"corrflow/internal/api"
	"corrflow/internal/audit"
	"corrflow/internal/correspondence"
	"corrflow/internal/services"
	"corrflow/internal/workflow"
)

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.daemon.Health(r.Context())
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrUnavailable, "api", "health", "database check failed", err))
		return
	}
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.daemon.corr.IsManager(actorFrom(r.Context())) {
		s.writeError(w, r, services.Wrap(services.ErrForbidden, "api", "status", "managers only", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleListCorrespondences(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, page, err := s.daemon.corr.List(r.Context(), actorFrom(r.Context()).ID, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCorrespondences(items, page))
}

func (s *apiServer) handleCreateCorrespondence(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRequest
	if err := readBody(r, createLoader, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.Input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.daemon.corr.Create(r.Context(), actorFrom(r.Context()).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromCreated(created))
}

func (s *apiServer) handleGetCorrespondence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	detail, err := s.daemon.corr.Get(r.Context(), actorFrom(r.Context()).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromDetail(detail))
}

func (s *apiServer) handleUpdateCorrespondence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.UpdateRequest
	if err := readBody(r, updateLoader, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.Input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actorID := actorFrom(r.Context()).ID
	if err := s.daemon.corr.UpdateDraft(r.Context(), actorID, id, in); err != nil {
		s.writeError(w, r, err)
		return
	}
	detail, err := s.daemon.corr.Get(r.Context(), actorID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromDetail(detail))
}

func (s *apiServer) handleDeleteCorrespondence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.daemon.corr.Delete(r.Context(), actorFrom(r.Context()).ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleSubmitCorrespondence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.daemon.corr.SubmitDraft(r.Context(), actorFrom(r.Context()).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCreated(created))
}

func (s *apiServer) handleArchiveCorrespondence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	changed, err := s.daemon.corr.Archive(r.Context(), actorFrom(r.Context()).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ArchiveResponse{ID: id, Archived: true, Changed: changed})
}

func (s *apiServer) handleSign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.SignRequest
	if err := readBody(r, signLoader, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := services.WithCorrespondenceID(r.Context(), id)
	result, err := s.daemon.engine.Sign(ctx, workflow.SignRequest{
		CorrespondenceID: id,
		UserID:           actorFrom(ctx).ID,
		Decision:         req.Decision,
		Notes:            req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSignResult(result))
}

func (s *apiServer) handleStages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stages, err := s.daemon.corr.Stages(r.Context(), actorFrom(r.Context()).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStages(stages))
}

func (s *apiServer) handleSignatures(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sigs, err := s.daemon.corr.Signatures(r.Context(), actorFrom(r.Context()).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSignatures(sigs))
}

func (s *apiServer) handleAttachments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.daemon.corr.Attachments(r.Context(), actorFrom(r.Context()).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromAttachments(items))
}

func (s *apiServer) handleComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.daemon.corr.Comments(r.Context(), actorFrom(r.Context()).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromComments(items))
}

func (s *apiServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.CommentRequest
	if err := readBody(r, commentLoader, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	commentID, err := s.daemon.corr.AddComment(r.Context(), actorFrom(r.Context()).ID, id, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.IDResponse{ID: commentID})
}

func (s *apiServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	items, unread, err := s.daemon.inbox.List(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromNotifications(items, unread))
}

func (s *apiServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.daemon.inbox.MarkRead(r.Context(), actorFrom(r.Context()).ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Updated: 1})
}

func (s *apiServer) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.daemon.inbox.MarkAllRead(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Updated: n})
}

func (s *apiServer) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	s.daemon.hub.ServeWS(w, r, actorFrom(r.Context()).ID)
}

func (s *apiServer) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.daemon.corr.Statistics(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStatistics(stats))
}

func (s *apiServer) handleUserStatistics(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.daemon.corr.UserStatistics(r.Context(), actorFrom(r.Context()).ID, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromUserStatistics(userID, stats))
}

func (s *apiServer) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if !s.daemon.corr.IsManager(actorFrom(r.Context())) {
		s.writeError(w, r, services.Wrap(services.ErrForbidden, "api", "audit logs", "managers only", nil))
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, p, err := s.daemon.engine.Recorder().List(r.Context(), page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromAudit(entries, p))
}

func (s *apiServer) handleSetDivisionManager(w http.ResponseWriter, r *http.Request) {
	s.setManager(w, r, "division", s.daemon.directory.SetDivisionManager)
}

func (s *apiServer) handleSetDepartmentManager(w http.ResponseWriter, r *http.Request) {
	s.setManager(w, r, "department", s.daemon.directory.SetDepartmentManager)
}

func (s *apiServer) setManager(w http.ResponseWriter, r *http.Request, unit string, set func(ctx context.Context, unitID, managerID int64) error) {
	actor := actorFrom(r.Context())
	if actor.Level > s.daemon.cfg.Auth.AdminLevel {
		s.writeError(w, r, services.Wrap(services.ErrForbidden, "api", "set manager", "administrators only", nil))
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.ManagerRequest
	if err := readBody(r, managerLoader, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := set(r.Context(), id, req.ManagerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.daemon.engine.Emit(r.Context(), s.daemon.engine.Recorder().Effect(audit.Entry{
		UserID:     actor.ID,
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityOrganization,
		EntityID:   id,
		Details:    map[string]any{"unit": unit, "manager_id": req.ManagerID},
	}))
	s.writeJSON(w, http.StatusOK, api.CountResponse{Updated: 1})
}

func parseFilter(r *http.Request) (correspondence.Filter, error) {
	q := r.URL.Query()
	f := correspondence.Filter{
		Status:   strings.TrimSpace(q.Get("status")),
		Priority: strings.TrimSpace(q.Get("priority")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	var err error
	if f.SenderID, err = queryInt64(r, "sender"); err != nil {
		return f, err
	}
	if f.ReceiverID, err = queryInt64(r, "receiver"); err != nil {
		return f, err
	}
	if f.Page, err = queryInt(r, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if raw := strings.TrimSpace(q.Get("archived")); raw != "" {
		archived, perr := strconv.ParseBool(raw)
		if perr != nil {
			return f, services.Wrap(services.ErrValidation, "api", "parse query", fmt.Sprintf("invalid archived %q", raw), nil)
		}
		f.Archived = &archived
	}
	return f, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, services.Wrap(services.ErrValidation, "api", "parse query", fmt.Sprintf("invalid %s %q", name, raw), nil)
	}
	return v, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v, err := queryInt64(r, name)
	return int(v), err
}
