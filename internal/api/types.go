package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Correspondence is the list/detail header of a correspondence.
type Correspondence struct {
	ID                 int64  `json:"id"`
	Number             string `json:"number"`
	Type               string `json:"type"`
	Subject            string `json:"subject"`
	Content            string `json:"content,omitempty"`
	Priority           string `json:"priority"`
	Status             string `json:"status"`
	SenderID           int64  `json:"senderId"`
	SenderName         string `json:"senderName,omitempty"`
	SenderType         string `json:"senderType"`
	SenderDivisionID   int64  `json:"senderDivisionId,omitempty"`
	SenderDepartmentID int64  `json:"senderDepartmentId,omitempty"`
	SenderSchoolID     int64  `json:"senderSchoolId,omitempty"`
	ReceiverID         int64  `json:"receiverId,omitempty"`
	ReceiverName       string `json:"receiverName,omitempty"`
	CurrentHandlerID   int64  `json:"currentHandlerId,omitempty"`
	HandlerName        string `json:"handlerName,omitempty"`
	Date               string `json:"date"`
	DueDate            string `json:"dueDate,omitempty"`
	Archived           bool   `json:"archived"`
	ArchivedAt         string `json:"archivedAt,omitempty"`
	ArchivedBy         int64  `json:"archivedBy,omitempty"`
	AttachmentsCount   int    `json:"attachmentsCount"`
	CreatedAt          string `json:"createdAt,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

// Stage is one step of the approval chain.
type Stage struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	Order             int    `json:"order"`
	AssignedTo        int64  `json:"assignedTo"`
	AssigneeName      string `json:"assigneeName,omitempty"`
	Status            string `json:"status"`
	RequiresSignature bool   `json:"requiresSignature"`
	Decision          string `json:"decision,omitempty"`
	Notes             string `json:"notes,omitempty"`
	CompletedAt       string `json:"completedAt,omitempty"`
	HasSignature      bool   `json:"hasSignature"`
}

// Signature is a recorded signature artifact.
type Signature struct {
	ID            int64  `json:"id"`
	StageID       int64  `json:"stageId,omitempty"`
	UserID        int64  `json:"userId"`
	SignerName    string `json:"signerName,omitempty"`
	RoleName      string `json:"roleName,omitempty"`
	Decision      string `json:"decision,omitempty"`
	SignatureData string `json:"signatureData,omitempty"`
	SignedAt      string `json:"signedAt"`
}

// Attachment is attachment metadata.
type Attachment struct {
	ID         int64  `json:"id"`
	FileName   string `json:"fileName"`
	FilePath   string `json:"filePath"`
	FileSize   int64  `json:"fileSize"`
	FileType   string `json:"fileType,omitempty"`
	UploadedBy int64  `json:"uploadedBy,omitempty"`
	UploadedAt string `json:"uploadedAt"`
}

// Comment is a remark on a correspondence.
type Comment struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"userId"`
	AuthorName string `json:"authorName,omitempty"`
	RoleName   string `json:"roleName,omitempty"`
	Text       string `json:"text"`
	CreatedAt  string `json:"createdAt"`
}

// CCRecipient is a carbon-copy entry.
type CCRecipient struct {
	Type        string `json:"type"`
	RecipientID int64  `json:"recipientId,omitempty"`
	Name        string `json:"name,omitempty"`
}

// CorrespondenceDetail bundles the header with every related list.
type CorrespondenceDetail struct {
	Correspondence
	Stages      []Stage       `json:"stages"`
	Signatures  []Signature   `json:"signatures"`
	Attachments []Attachment  `json:"attachments"`
	Comments    []Comment     `json:"comments"`
	CC          []CCRecipient `json:"cc"`
}

// Page describes pagination of a listing.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// CorrespondenceList wraps one page of correspondences.
type CorrespondenceList struct {
	Items      []Correspondence `json:"items"`
	Pagination Page             `json:"pagination"`
}

// CreateResponse reports a stored correspondence.
type CreateResponse struct {
	ID      int64  `json:"id"`
	Number  string `json:"number"`
	Status  string `json:"status"`
	Handler int64  `json:"handler,omitempty"`
}

// SignResponse reports the applied decision.
type SignResponse struct {
	CorrespondenceID int64  `json:"correspondenceId"`
	Decision         string `json:"decision"`
	Label            string `json:"label"`
	StageID          int64  `json:"stageId"`
	StageName        string `json:"stageName"`
	Status           string `json:"status"`
	NextHandler      int64  `json:"nextHandler,omitempty"`
	Terminal         bool   `json:"terminal"`
}

// Notification is an inbox entry.
type Notification struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message,omitempty"`
	RelatedID   int64  `json:"relatedId,omitempty"`
	RelatedType string `json:"relatedType,omitempty"`
	Read        bool   `json:"read"`
	CreatedAt   string `json:"createdAt"`
}

// NotificationList is the inbox listing.
type NotificationList struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}

// AuditEntry is one audit trail row.
type AuditEntry struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"userId,omitempty"`
	UserName   string `json:"userName,omitempty"`
	Action     string `json:"action"`
	EntityType string `json:"entityType"`
	EntityID   int64  `json:"entityId,omitempty"`
	Details    string `json:"details,omitempty"`
	IPAddress  string `json:"ipAddress,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

// AuditList wraps one page of the audit trail.
type AuditList struct {
	Items      []AuditEntry `json:"items"`
	Pagination Page         `json:"pagination"`
}

// SenderCount is one row of the top-senders table.
type SenderCount struct {
	UserID   int64  `json:"userId"`
	FullName string `json:"fullName"`
	Count    int    `json:"count"`
}

// Statistics summarizes correspondence volume.
type Statistics struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"byStatus"`
	ByPriority  map[string]int `json:"byPriority"`
	Today       int            `json:"today"`
	ThisMonth   int            `json:"thisMonth"`
	Overdue     int            `json:"overdue"`
	TopSenders  []SenderCount  `json:"topSenders"`
	PendingMine int            `json:"pendingMine"`
}

// UserStatistics summarizes one user's activity.
type UserStatistics struct {
	UserID     int64 `json:"userId"`
	Sent       int   `json:"sent"`
	Received   int   `json:"received"`
	Signatures int   `json:"signatures"`
	Pending    int   `json:"pending"`
}

// Health reports daemon and database readiness.
type Health struct {
	Status        string   `json:"status"`
	SchemaVersion int      `json:"schemaVersion"`
	MissingTables []string `json:"missingTables,omitempty"`
	Integrity     bool     `json:"integrity"`
	Detail        string   `json:"detail,omitempty"`
}

// DaemonStatus aggregates runtime information for the status command.
type DaemonStatus struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	Bind         string       `json:"bind"`
	DatabasePath string       `json:"databasePath"`
	LockFilePath string       `json:"lockFilePath"`
	SessionID    string       `json:"sessionId,omitempty"`
	StartedAt    string       `json:"startedAt,omitempty"`
	Effects      EffectsStats `json:"effects"`
	Directory    CacheStats   `json:"directoryCache"`
}

// EffectsStats mirrors the side-effect dispatcher counters.
type EffectsStats struct {
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
	Workers   int   `json:"workers"`
}

// CacheStats mirrors the directory cache counters.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ArchiveResponse reports an archive request. Changed is false when the
// correspondence was already archived.
type ArchiveResponse struct {
	ID       int64 `json:"id"`
	Archived bool  `json:"archived"`
	Changed  bool  `json:"changed"`
}

// IDResponse carries the id of a created row.
type IDResponse struct {
	ID int64 `json:"id"`
}

// CountResponse reports how many rows an update touched.
type CountResponse struct {
	Updated int64 `json:"updated"`
}
