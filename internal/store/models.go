package store

import (
	"time"

	"corrflow/internal/lifecycle"
)

// Role groups users by permission level. Lower levels carry more authority.
type Role struct {
	ID    int64
	Name  string
	Level int
}

// User is a member of the organization chart. Zero ids mean "no placement".
type User struct {
	ID           int64
	Username     string
	FullName     string
	RoleID       int64
	Level        int
	DivisionID   int64
	DepartmentID int64
	SchoolID     int64
	Active       bool
}

// Division is a sub-unit of a department.
type Division struct {
	ID           int64
	Name         string
	DepartmentID int64
	ManagerID    int64
	Active       bool
}

// Department is a top-level organizational unit.
type Department struct {
	ID        int64
	Name      string
	ManagerID int64
	Active    bool
}

// School is an organizational unit outside the division/department tree.
type School struct {
	ID        int64
	Name      string
	ManagerID int64
	Active    bool
}

// Correspondence is the document header row plus joined display names.
type Correspondence struct {
	ID                 int64
	Number             string
	RefSeq             int
	RefYear            int
	Type               string
	Subject            string
	Content            string
	Priority           lifecycle.Priority
	Status             lifecycle.Status
	SenderID           int64
	SenderType         lifecycle.Placement
	SenderDivisionID   int64
	SenderDepartmentID int64
	SenderSchoolID     int64
	ReceiverID         int64
	CurrentHandlerID   int64
	Date               time.Time
	DueDate            *time.Time
	Archived           bool
	ArchivedAt         *time.Time
	ArchivedBy         int64
	CreatedAt          time.Time
	UpdatedAt          time.Time

	SenderName       string
	ReceiverName     string
	HandlerName      string
	AttachmentsCount int
}

// StageKind identifies which rule of the chain produced a stage.
type StageKind string

const (
	StageKindDivision   StageKind = "division"
	StageKindDepartment StageKind = "department"
	StageKindFinal      StageKind = "final"
)

// Stage is one approval step of a correspondence.
type Stage struct {
	ID                int64
	CorrespondenceID  int64
	Name              string
	Kind              StageKind
	Order             int
	AssignedTo        int64
	Status            lifecycle.StageStatus
	RequiresSignature bool
	Decision          string
	Notes             string
	CompletedAt       *time.Time
	CreatedAt         time.Time

	AssigneeName  string
	SignatureData string
}

// NewStage describes a stage row to insert at submission time.
type NewStage struct {
	Name              string
	Kind              StageKind
	Order             int
	AssignedTo        int64
	Status            lifecycle.StageStatus
	RequiresSignature bool
}

// CC recipient types.
const (
	CCTypeUser   = "user"
	CCTypeCustom = "custom"
)

// CCRecipient is a carbon-copy entry carried alongside a correspondence.
type CCRecipient struct {
	ID               int64
	CorrespondenceID int64
	Type             string
	RecipientID      int64
	Name             string
}

// Attachment is metadata about an uploaded file; the bytes live elsewhere.
type Attachment struct {
	ID               int64
	CorrespondenceID int64
	FileName         string
	FilePath         string
	FileSize         int64
	FileType         string
	UploadedBy       int64
	UploadedAt       time.Time
}

// Signature records a decision on a signature-bearing stage.
type Signature struct {
	ID               int64
	CorrespondenceID int64
	StageID          int64
	UserID           int64
	SignatureData    string
	Decision         string
	SignedAt         time.Time

	SignerName string
	RoleName   string
	CorrNumber string
	Subject    string
}

// Comment is a free-text remark on a correspondence.
type Comment struct {
	ID               int64
	CorrespondenceID int64
	UserID           int64
	Text             string
	CreatedAt        time.Time

	AuthorName string
	RoleName   string
}

// Notification is an in-app inbox entry.
type Notification struct {
	ID          int64
	UserID      int64
	Type        string
	Title       string
	Message     string
	RelatedID   int64
	RelatedType string
	Read        bool
	CreatedAt   time.Time
}

// AuditEntry is one row of the audit trail. Details holds JSON.
type AuditEntry struct {
	ID         int64
	UserID     int64
	Action     string
	EntityType string
	EntityID   int64
	Details    string
	IPAddress  string
	CreatedAt  time.Time

	UserName string
}

// ListFilter narrows a correspondence listing.
type ListFilter struct {
	Status     lifecycle.Status
	Priority   lifecycle.Priority
	SenderID   int64
	ReceiverID int64
	Search     string
	Archived   *bool
	// VisibleTo restricts rows to those the user sends, receives, or handles.
	VisibleTo int64
	Page      int
	Limit     int
}

// Page describes a slice of a larger result.
type Page struct {
	Page  int
	Limit int
	Total int
}

// Pages returns the number of pages needed for Total rows.
func (p Page) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Statistics summarizes correspondence volume.
type Statistics struct {
	Total       int
	ByStatus    map[lifecycle.Status]int
	ByPriority  map[lifecycle.Priority]int
	Today       int
	ThisMonth   int
	Overdue     int
	TopSenders  []SenderCount
	PendingMine int
}

// SenderCount pairs a user with the number of correspondences they sent.
type SenderCount struct {
	UserID   int64
	FullName string
	Count    int
}

// UserStatistics summarizes one user's activity.
type UserStatistics struct {
	Sent       int
	Received   int
	Signatures int
	Pending    int
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	Migrations       []string
	MissingTables    []string
	IntegrityCheck   bool
	Correspondences  int
	PendingStages    int
	Error            string
}
