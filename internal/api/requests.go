package api

import (
	"fmt"
	"strings"
	"time"

	"corrflow/internal/correspondence"
	"corrflow/internal/services"
	"corrflow/internal/store"
)

// CreateRequest is the body of POST /api/correspondences.
type CreateRequest struct {
	Number      string              `json:"number,omitempty"`
	Type        string              `json:"type,omitempty"`
	Subject     string              `json:"subject"`
	Content     string              `json:"content,omitempty"`
	Priority    string              `json:"priority,omitempty"`
	ReceiverID  int64               `json:"receiverId,omitempty"`
	DueDate     string              `json:"dueDate,omitempty"`
	CC          []CCRecipient       `json:"cc,omitempty"`
	Attachments []AttachmentRequest `json:"attachments,omitempty"`
	Draft       bool                `json:"draft,omitempty"`
}

// AttachmentRequest is attachment metadata supplied at creation.
type AttachmentRequest struct {
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType,omitempty"`
}

// UpdateRequest is the body of PUT /api/correspondences/{id}. Absent
// fields are left unchanged.
type UpdateRequest struct {
	Type       *string `json:"type,omitempty"`
	Subject    *string `json:"subject,omitempty"`
	Content    *string `json:"content,omitempty"`
	Priority   *string `json:"priority,omitempty"`
	ReceiverID *int64  `json:"receiverId,omitempty"`
	DueDate    *string `json:"dueDate,omitempty"`
}

// SignRequest is the body of POST /api/correspondences/{id}/sign.
type SignRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

// CommentRequest is the body of POST /api/correspondences/{id}/comments.
type CommentRequest struct {
	Text string `json:"text"`
}

// ManagerRequest assigns a manager to a division or department.
type ManagerRequest struct {
	ManagerID int64 `json:"managerId"`
}

// ParseDate accepts a calendar date or a full RFC3339 timestamp.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, services.Wrap(services.ErrValidation, "api", "parse date",
		fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", value), nil)
}

// Input converts the request into the service input.
func (r CreateRequest) Input() (correspondence.CreateInput, error) {
	due, err := ParseDate(r.DueDate)
	if err != nil {
		return correspondence.CreateInput{}, err
	}
	in := correspondence.CreateInput{
		Number:     r.Number,
		Type:       r.Type,
		Subject:    r.Subject,
		Content:    r.Content,
		Priority:   r.Priority,
		ReceiverID: r.ReceiverID,
		DueDate:    due,
		AsDraft:    r.Draft,
	}
	for _, cc := range r.CC {
		in.CC = append(in.CC, store.CCRecipient{Type: cc.Type, RecipientID: cc.RecipientID, Name: cc.Name})
	}
	for _, a := range r.Attachments {
		in.Attachments = append(in.Attachments, store.Attachment{
			FileName: a.FileName,
			FilePath: a.FilePath,
			FileSize: a.FileSize,
			FileType: a.FileType,
		})
	}
	return in, nil
}

// Input converts the request into a draft patch.
func (r UpdateRequest) Input() (correspondence.DraftInput, error) {
	in := correspondence.DraftInput{
		Type:       r.Type,
		Subject:    r.Subject,
		Content:    r.Content,
		Priority:   r.Priority,
		ReceiverID: r.ReceiverID,
	}
	if r.DueDate != nil {
		due, err := ParseDate(*r.DueDate)
		if err != nil {
			return correspondence.DraftInput{}, err
		}
		in.DueDate = due
	}
	return in, nil
}
