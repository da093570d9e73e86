package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"corrflow/internal/lifecycle"
	"corrflow/internal/services"
)

const correspondenceColumns = `c.id, c.corr_number, COALESCE(c.ref_seq, 0), COALESCE(c.ref_year, 0),
	c.corr_type, c.subject, COALESCE(c.content, ''), c.priority, c.status, c.sender_id, c.sender_type,
	COALESCE(c.sender_division_id, 0), COALESCE(c.sender_department_id, 0), COALESCE(c.sender_school_id, 0),
	COALESCE(c.receiver_id, 0), COALESCE(c.current_handler_id, 0), c.corr_date, c.due_date,
	c.archived, c.archive_date, COALESCE(c.archived_by, 0), c.created_at, c.updated_at,
	COALESCE(s.full_name, ''), COALESCE(r.full_name, ''), COALESCE(h.full_name, ''),
	(SELECT COUNT(1) FROM correspondence_attachments a WHERE a.correspondence_id = c.id)`

const correspondenceFrom = ` FROM correspondences c
	LEFT JOIN users s ON s.id = c.sender_id
	LEFT JOIN users r ON r.id = c.receiver_id
	LEFT JOIN users h ON h.id = c.current_handler_id`

func scanCorrespondence(scanner rowScanner) (*Correspondence, error) {
	var (
		c          Correspondence
		priority   string
		status     string
		senderType string
		corrDate   string
		dueDate    sql.NullString
		archived   int
		archivedAt sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := scanner.Scan(
		&c.ID, &c.Number, &c.RefSeq, &c.RefYear,
		&c.Type, &c.Subject, &c.Content, &priority, &status, &c.SenderID, &senderType,
		&c.SenderDivisionID, &c.SenderDepartmentID, &c.SenderSchoolID,
		&c.ReceiverID, &c.CurrentHandlerID, &corrDate, &dueDate,
		&archived, &archivedAt, &c.ArchivedBy, &createdAt, &updatedAt,
		&c.SenderName, &c.ReceiverName, &c.HandlerName,
		&c.AttachmentsCount,
	); err != nil {
		return nil, err
	}
	c.Priority = lifecycle.Priority(priority)
	c.Status = lifecycle.Status(status)
	c.SenderType = lifecycle.Placement(senderType)
	c.Archived = archived != 0
	c.DueDate = parseNullTime(dueDate)
	c.ArchivedAt = parseNullTime(archivedAt)
	var err error
	if c.Date, err = parseTimeString(corrDate); err != nil {
		return nil, fmt.Errorf("parse corr_date: %w", err)
	}
	if c.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &c, nil
}

func getCorrespondence(ctx context.Context, q querier, id int64) (*Correspondence, error) {
	row := q.QueryRowContext(ctx, `SELECT `+correspondenceColumns+correspondenceFrom+` WHERE c.id = ?`, id)
	corr, err := scanCorrespondence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get correspondence %d: %w", id, err)
	}
	return corr, nil
}

// GetCorrespondence fetches a correspondence with joined display names.
// It returns nil when the row does not exist.
func (s *Store) GetCorrespondence(ctx context.Context, id int64) (*Correspondence, error) {
	return getCorrespondence(ensureContext(ctx), s.db, id)
}

// GetCorrespondence fetches a correspondence inside the transaction.
func (t *Tx) GetCorrespondence(ctx context.Context, id int64) (*Correspondence, error) {
	return getCorrespondence(ctx, t.tx, id)
}

// InsertCorrespondence writes the header row and returns its id. A duplicate
// reference number reports ErrConflict.
func (t *Tx) InsertCorrespondence(ctx context.Context, c *Correspondence) (int64, error) {
	if c == nil {
		return 0, errors.New("insert correspondence: nil record")
	}
	ts := now()
	if c.Date.IsZero() {
		c.Date = ts
	}
	if c.Status == "" {
		c.Status = lifecycle.StatusDraft
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO correspondences (
			corr_number, ref_seq, ref_year, corr_type, subject, content, priority, status,
			sender_id, sender_type, sender_division_id, sender_department_id, sender_school_id,
			receiver_id, current_handler_id, corr_date, due_date, archived, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		c.Number, nullableInt(c.RefSeq), nullableInt(c.RefYear), c.Type, c.Subject, nullableString(c.Content),
		string(c.Priority), string(c.Status),
		c.SenderID, string(c.SenderType), nullableID(c.SenderDivisionID), nullableID(c.SenderDepartmentID),
		nullableID(c.SenderSchoolID), nullableID(c.ReceiverID), nullableID(c.CurrentHandlerID),
		formatTime(c.Date), nullableTime(c.DueDate), formatTime(ts), formatTime(ts),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, services.Wrap(services.ErrConflict, "correspondence", "insert",
				fmt.Sprintf("reference %q already exists", c.Number), nil)
		}
		return 0, fmt.Errorf("insert correspondence: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("correspondence id: %w", err)
	}
	c.ID = id
	c.CreatedAt = ts
	c.UpdatedAt = ts
	return id, nil
}

// InsertCC stores the carbon-copy list of a correspondence.
func (t *Tx) InsertCC(ctx context.Context, corrID int64, recipients []CCRecipient) error {
	for _, cc := range recipients {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO correspondence_cc (correspondence_id, recipient_type, recipient_id, recipient_name)
			 VALUES (?, ?, ?, ?)`,
			corrID, cc.Type, nullableID(cc.RecipientID), nullableString(cc.Name),
		); err != nil {
			return fmt.Errorf("insert cc: %w", err)
		}
	}
	return nil
}

// InsertAttachments stores attachment metadata for a correspondence.
func (t *Tx) InsertAttachments(ctx context.Context, corrID int64, attachments []Attachment) error {
	ts := formatTime(now())
	for _, a := range attachments {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO correspondence_attachments
			 (correspondence_id, file_name, file_path, file_size, file_type, uploaded_by, uploaded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			corrID, a.FileName, a.FilePath, a.FileSize, nullableString(a.FileType), nullableID(a.UploadedBy), ts,
		); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}
	return nil
}

// AllocateReference returns the next sequence number for year. The counter is
// seeded from the highest stored ref_seq the first time a year is used and is
// incremented atomically afterwards.
func (t *Tx) AllocateReference(ctx context.Context, year int) (int, error) {
	var seq int
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO reference_counters (year, last_seq)
		 VALUES (?, (SELECT COALESCE(MAX(ref_seq), 0) FROM correspondences WHERE ref_year = ?) + 1)
		 ON CONFLICT(year) DO UPDATE SET last_seq = last_seq + 1
		 RETURNING last_seq`, year, year,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("allocate reference for %d: %w", year, err)
	}
	return seq, nil
}

// ReserveManualReference raises the year's counter to at least seq so later
// automatic numbers never collide with a manually supplied reference.
func (t *Tx) ReserveManualReference(ctx context.Context, seq, year int) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO reference_counters (year, last_seq)
		 VALUES (?, MAX(?, (SELECT COALESCE(MAX(ref_seq), 0) FROM correspondences WHERE ref_year = ?)))
		 ON CONFLICT(year) DO UPDATE SET last_seq = MAX(last_seq, excluded.last_seq)`,
		year, seq, year)
	if err != nil {
		return fmt.Errorf("reserve reference %d/%d: %w", seq, year, err)
	}
	return nil
}

// TransitionCorrespondence moves a correspondence from one status to another
// and sets the current handler. The update only applies while the row still
// holds from; otherwise ErrStaleState is returned.
func (t *Tx) TransitionCorrespondence(ctx context.Context, id int64, from, to lifecycle.Status, handlerID int64) error {
	if err := lifecycle.CheckCorrespondence(from, to); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE correspondences SET status = ?, current_handler_id = COALESCE(?, current_handler_id), updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), nullableID(handlerID), formatTime(now()), id, string(from))
	if err != nil {
		return fmt.Errorf("transition correspondence %d: %w", id, err)
	}
	return expectOneRow(res, "transition correspondence")
}

// SetHandler points the correspondence at the assignee of its newly pending stage.
func (t *Tx) SetHandler(ctx context.Context, id, handlerID int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE correspondences SET current_handler_id = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		nullableID(handlerID), formatTime(now()), id, string(lifecycle.StatusPending))
	if err != nil {
		return fmt.Errorf("set handler %d: %w", id, err)
	}
	return expectOneRow(res, "set handler")
}

// DraftPatch holds the editable fields of a draft. Nil fields are left unchanged.
type DraftPatch struct {
	Type       *string
	Subject    *string
	Content    *string
	Priority   *lifecycle.Priority
	ReceiverID *int64
	DueDate    *time.Time
}

// Empty reports whether the patch changes nothing.
func (p DraftPatch) Empty() bool {
	return p.Type == nil && p.Subject == nil && p.Content == nil &&
		p.Priority == nil && p.ReceiverID == nil && p.DueDate == nil
}

// UpdateDraft applies patch while the correspondence is still a draft.
// ErrStaleState is returned when the row is no longer a draft.
func (s *Store) UpdateDraft(ctx context.Context, id int64, patch DraftPatch) error {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 9)
	if patch.Type != nil {
		sets = append(sets, "corr_type = ?")
		args = append(args, *patch.Type)
	}
	if patch.Subject != nil {
		sets = append(sets, "subject = ?")
		args = append(args, *patch.Subject)
	}
	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, nullableString(*patch.Content))
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if patch.ReceiverID != nil {
		sets = append(sets, "receiver_id = ?")
		args = append(args, nullableID(*patch.ReceiverID))
	}
	if patch.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, nullableTime(patch.DueDate))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(now()), id, string(lifecycle.StatusDraft))

	res, err := s.execWithRetry(ctx,
		`UPDATE correspondences SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return fmt.Errorf("update draft %d: %w", id, err)
	}
	return expectOneRow(res, "update draft")
}

// Archive flags a correspondence as archived. Correspondences whose chain is
// not running are also relabelled to the archived status; a pending one keeps
// its status so the outstanding stage can still be signed. It reports whether
// anything changed.
func (s *Store) Archive(ctx context.Context, id, userID int64) (bool, error) {
	ts := formatTime(now())
	res, err := s.execWithRetry(ctx,
		`UPDATE correspondences
		 SET archived = 1, archive_date = ?, archived_by = ?, updated_at = ?,
		     status = CASE WHEN status IN (?, ?, ?) THEN ? ELSE status END
		 WHERE id = ? AND archived = 0`,
		ts, nullableID(userID), ts,
		string(lifecycle.StatusDraft), string(lifecycle.StatusApproved), string(lifecycle.StatusRejected),
		string(lifecycle.StatusArchived), id)
	if err != nil {
		return false, fmt.Errorf("archive correspondence %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("archive correspondence %d: %w", id, err)
	}
	return n > 0, nil
}

// Delete removes a correspondence; child rows cascade. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM correspondences WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete correspondence %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete correspondence %d: %w", id, err)
	}
	return n > 0, nil
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 200
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// ListCorrespondences returns one page of correspondences matching filter,
// newest first, along with the page metadata.
func (s *Store) ListCorrespondences(ctx context.Context, filter ListFilter) ([]*Correspondence, Page, error) {
	ctx = ensureContext(ctx)
	page, limit := normalizePage(filter.Page, filter.Limit)

	where := make([]string, 0, 8)
	args := make([]any, 0, 10)
	if filter.Status != "" {
		where = append(where, "c.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		where = append(where, "c.priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.SenderID > 0 {
		where = append(where, "c.sender_id = ?")
		args = append(args, filter.SenderID)
	}
	if filter.ReceiverID > 0 {
		where = append(where, "c.receiver_id = ?")
		args = append(args, filter.ReceiverID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		where = append(where, "(c.subject LIKE ? OR c.corr_number LIKE ? OR c.content LIKE ?)")
		args = append(args, like, like, like)
	}
	if filter.Archived != nil {
		where = append(where, "c.archived = ?")
		args = append(args, boolToInt(*filter.Archived))
	}
	if filter.VisibleTo > 0 {
		where = append(where, `(c.sender_id = ? OR c.receiver_id = ? OR c.current_handler_id = ?
			OR EXISTS (SELECT 1 FROM workflow_stages ws WHERE ws.correspondence_id = c.id AND ws.assigned_to = ?))`)
		args = append(args, filter.VisibleTo, filter.VisibleTo, filter.VisibleTo, filter.VisibleTo)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM correspondences c`+clause, args...).Scan(&total); err != nil {
		return nil, Page{}, fmt.Errorf("count correspondences: %w", err)
	}

	query := `SELECT ` + correspondenceColumns + correspondenceFrom + clause +
		` ORDER BY c.created_at DESC, c.id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, Page{}, fmt.Errorf("list correspondences: %w", err)
	}
	defer rows.Close()

	var items []*Correspondence
	for rows.Next() {
		corr, err := scanCorrespondence(rows)
		if err != nil {
			return nil, Page{}, fmt.Errorf("scan correspondence: %w", err)
		}
		items = append(items, corr)
	}
	if err := rows.Err(); err != nil {
		return nil, Page{}, err
	}
	return items, Page{Page: page, Limit: limit, Total: total}, nil
}

func ccRecipients(ctx context.Context, q querier, corrID int64) ([]CCRecipient, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT cc.id, cc.correspondence_id, cc.recipient_type, COALESCE(cc.recipient_id, 0),
		        COALESCE(NULLIF(cc.recipient_name, ''), u.full_name, '')
		 FROM correspondence_cc cc
		 LEFT JOIN users u ON cc.recipient_type = 'user' AND u.id = cc.recipient_id
		 WHERE cc.correspondence_id = ? ORDER BY cc.id`, corrID)
	if err != nil {
		return nil, fmt.Errorf("list cc: %w", err)
	}
	defer rows.Close()
	var out []CCRecipient
	for rows.Next() {
		var cc CCRecipient
		if err := rows.Scan(&cc.ID, &cc.CorrespondenceID, &cc.Type, &cc.RecipientID, &cc.Name); err != nil {
			return nil, fmt.Errorf("scan cc: %w", err)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// CCRecipients lists the carbon-copy entries of a correspondence.
func (s *Store) CCRecipients(ctx context.Context, corrID int64) ([]CCRecipient, error) {
	return ccRecipients(ensureContext(ctx), s.db, corrID)
}

// CCRecipients lists the carbon-copy entries inside the transaction.
func (t *Tx) CCRecipients(ctx context.Context, corrID int64) ([]CCRecipient, error) {
	return ccRecipients(ctx, t.tx, corrID)
}

// Attachments lists attachment metadata, newest first.
func (s *Store) Attachments(ctx context.Context, corrID int64) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, correspondence_id, file_name, file_path, file_size, COALESCE(file_type, ''),
		        COALESCE(uploaded_by, 0), uploaded_at
		 FROM correspondence_attachments WHERE correspondence_id = ? ORDER BY uploaded_at DESC, id DESC`, corrID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		var (
			a          Attachment
			uploadedAt string
		)
		if err := rows.Scan(&a.ID, &a.CorrespondenceID, &a.FileName, &a.FilePath, &a.FileSize,
			&a.FileType, &a.UploadedBy, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		if a.UploadedAt, err = parseTimeString(uploadedAt); err != nil {
			return nil, fmt.Errorf("parse uploaded_at: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n != 1 {
		return fmt.Errorf("%s: %w", op, ErrStaleState)
	}
	return nil
}
