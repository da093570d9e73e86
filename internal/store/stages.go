package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"corrflow/internal/lifecycle"
)

const stageColumns = `ws.id, ws.correspondence_id, ws.stage_name, ws.stage_kind, ws.stage_order, ws.assigned_to,
	ws.status, ws.requires_signature, COALESCE(ws.decision, ''), COALESCE(ws.notes, ''), ws.completed_at,
	ws.created_at, COALESCE(u.full_name, ''), COALESCE(sig.signature_data, '')`

const stageFrom = ` FROM workflow_stages ws
	LEFT JOIN users u ON u.id = ws.assigned_to
	LEFT JOIN correspondence_signatures sig ON sig.stage_id = ws.id`

func scanStage(scanner rowScanner) (*Stage, error) {
	var (
		st          Stage
		kind        string
		status      string
		requiresSig int
		completedAt sql.NullString
		createdAt   string
	)
	if err := scanner.Scan(&st.ID, &st.CorrespondenceID, &st.Name, &kind, &st.Order, &st.AssignedTo,
		&status, &requiresSig, &st.Decision, &st.Notes, &completedAt,
		&createdAt, &st.AssigneeName, &st.SignatureData); err != nil {
		return nil, err
	}
	st.Kind = StageKind(kind)
	st.Status = lifecycle.StageStatus(status)
	st.RequiresSignature = requiresSig != 0
	st.CompletedAt = parseNullTime(completedAt)
	var err error
	if st.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse stage created_at: %w", err)
	}
	return &st, nil
}

func queryStages(ctx context.Context, q querier, where string, args ...any) ([]*Stage, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+stageColumns+stageFrom+` WHERE `+where+` ORDER BY ws.correspondence_id, ws.stage_order`, args...)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()
	var out []*Stage
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func queryStage(ctx context.Context, q querier, where string, args ...any) (*Stage, error) {
	row := q.QueryRowContext(ctx, `SELECT `+stageColumns+stageFrom+` WHERE `+where+` ORDER BY ws.stage_order LIMIT 1`, args...)
	st, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return st, nil
}

// Stages returns the chain of a correspondence ordered by stage order, with
// assignee names and any recorded signature.
func (s *Store) Stages(ctx context.Context, corrID int64) ([]*Stage, error) {
	return queryStages(ensureContext(ctx), s.db, "ws.correspondence_id = ?", corrID)
}

// Stages returns the chain inside the transaction.
func (t *Tx) Stages(ctx context.Context, corrID int64) ([]*Stage, error) {
	return queryStages(ctx, t.tx, "ws.correspondence_id = ?", corrID)
}

// PendingStagesFor lists every pending stage assigned to userID, i.e. the user's signing queue.
func (s *Store) PendingStagesFor(ctx context.Context, userID int64) ([]*Stage, error) {
	return queryStages(ensureContext(ctx), s.db, "ws.assigned_to = ? AND ws.status = ?",
		userID, string(lifecycle.StagePending))
}

// InsertStages writes the built chain of a correspondence.
func (t *Tx) InsertStages(ctx context.Context, corrID int64, stages []NewStage) error {
	ts := formatTime(now())
	for _, st := range stages {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO workflow_stages
			 (correspondence_id, stage_name, stage_kind, stage_order, assigned_to, status, requires_signature, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			corrID, st.Name, string(st.Kind), st.Order, st.AssignedTo, string(st.Status),
			boolToInt(st.RequiresSignature), ts,
		); err != nil {
			return fmt.Errorf("insert stage %d: %w", st.Order, err)
		}
	}
	return nil
}

// PendingStageFor returns the unique pending stage of corrID assigned to
// userID, or nil when the user has nothing to sign.
func (t *Tx) PendingStageFor(ctx context.Context, corrID, userID int64) (*Stage, error) {
	return queryStage(ctx, t.tx, "ws.correspondence_id = ? AND ws.assigned_to = ? AND ws.status = ?",
		corrID, userID, string(lifecycle.StagePending))
}

// NextStage returns the stage following afterOrder, or nil at the end of the chain.
func (t *Tx) NextStage(ctx context.Context, corrID int64, afterOrder int) (*Stage, error) {
	return queryStage(ctx, t.tx, "ws.correspondence_id = ? AND ws.stage_order > ?", corrID, afterOrder)
}

// CompleteStage records a decision on a pending stage. The update only
// applies while the stage is still pending and assigned to userID, so of two
// racing signers exactly one sees success and the other gets ErrStaleState.
func (t *Tx) CompleteStage(ctx context.Context, stageID, userID int64, to lifecycle.StageStatus, decision, notes string) error {
	if err := lifecycle.CheckStage(lifecycle.StagePending, to); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE workflow_stages SET status = ?, decision = ?, notes = ?, completed_at = ?
		 WHERE id = ? AND status = ? AND assigned_to = ?`,
		string(to), decision, nullableString(notes), formatTime(now()),
		stageID, string(lifecycle.StagePending), userID)
	if err != nil {
		return fmt.Errorf("complete stage %d: %w", stageID, err)
	}
	return expectOneRow(res, "complete stage")
}

// ActivateStage moves a waiting stage to pending.
func (t *Tx) ActivateStage(ctx context.Context, stageID int64) error {
	if err := lifecycle.CheckStage(lifecycle.StageWaiting, lifecycle.StagePending); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE workflow_stages SET status = ? WHERE id = ? AND status = ?`,
		string(lifecycle.StagePending), stageID, string(lifecycle.StageWaiting))
	if err != nil {
		return fmt.Errorf("activate stage %d: %w", stageID, err)
	}
	return expectOneRow(res, "activate stage")
}

// RecordSignature stores the signature artifact for a completed stage,
// copying the signer's stored signature image when one exists.
func (t *Tx) RecordSignature(ctx context.Context, corrID, stageID, userID int64, decision string) (int64, error) {
	data, err := t.UserSignature(ctx, userID)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO correspondence_signatures (correspondence_id, stage_id, user_id, signature_data, decision, signed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		corrID, stageID, userID, nullableString(data), decision, formatTime(now()))
	if err != nil {
		return 0, fmt.Errorf("record signature: %w", err)
	}
	return res.LastInsertId()
}

const signatureColumns = `sig.id, sig.correspondence_id, COALESCE(sig.stage_id, 0), sig.user_id,
	COALESCE(sig.signature_data, ''), COALESCE(sig.decision, ''), sig.signed_at,
	COALESCE(u.full_name, ''), COALESCE(r.name, ''), c.corr_number, c.subject`

const signatureFrom = ` FROM correspondence_signatures sig
	JOIN correspondences c ON c.id = sig.correspondence_id
	LEFT JOIN users u ON u.id = sig.user_id
	LEFT JOIN roles r ON r.id = u.role_id`

func (s *Store) querySignatures(ctx context.Context, where string, args ...any) ([]Signature, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+signatureColumns+signatureFrom+` WHERE `+where+` ORDER BY sig.signed_at DESC, sig.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()
	var out []Signature
	for rows.Next() {
		var (
			sig      Signature
			signedAt string
		)
		if err := rows.Scan(&sig.ID, &sig.CorrespondenceID, &sig.StageID, &sig.UserID,
			&sig.SignatureData, &sig.Decision, &signedAt,
			&sig.SignerName, &sig.RoleName, &sig.CorrNumber, &sig.Subject); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		if sig.SignedAt, err = parseTimeString(signedAt); err != nil {
			return nil, fmt.Errorf("parse signed_at: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// Signatures lists the signatures recorded on a correspondence.
func (s *Store) Signatures(ctx context.Context, corrID int64) ([]Signature, error) {
	return s.querySignatures(ctx, "sig.correspondence_id = ?", corrID)
}

// SignaturesByUser lists every signature a user has applied.
func (s *Store) SignaturesByUser(ctx context.Context, userID int64) ([]Signature, error) {
	return s.querySignatures(ctx, "sig.user_id = ?", userID)
}
