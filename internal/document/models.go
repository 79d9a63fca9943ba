package document

import "time"

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
)

// Valid reports whether s names a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved:
		return true
	}
	return false
}

// Action is the kind of state-changing operation recorded in history.
type Action string

const (
	ActionSubmit  Action = "SUBMIT"
	ActionApprove Action = "APPROVE"
)

// Document is the persistent document model. Number is assigned once at
// creation and never changes; Status only moves forward through the lifecycle.
type Document struct {
	ID        int64          `json:"id" bson:"_id" gorm:"primaryKey;autoIncrement"`
	Number    string         `json:"number" bson:"number" gorm:"size:50;not null;uniqueIndex"`
	Author    string         `json:"author" bson:"author" gorm:"size:255;not null;index"`
	Title     string         `json:"title" bson:"title" gorm:"size:500;not null"`
	Status    Status         `json:"status" bson:"status" gorm:"size:20;not null;index"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt" gorm:"not null;index"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updatedAt" gorm:"not null"`
	History   []HistoryEntry `json:"history" bson:"-" gorm:"foreignKey:DocumentID"`
}

func (Document) TableName() string { return "documents" }

// HistoryEntry is an append-only audit record of one transition.
type HistoryEntry struct {
	ID          int64     `json:"id" bson:"_id" gorm:"primaryKey;autoIncrement"`
	DocumentID  int64     `json:"-" bson:"documentId" gorm:"not null;index"`
	PerformedBy string    `json:"performedBy" bson:"performedBy" gorm:"size:255;not null"`
	Action      Action    `json:"action" bson:"action" gorm:"size:20;not null"`
	PerformedAt time.Time `json:"performedAt" bson:"performedAt" gorm:"not null"`
	Comment     *string   `json:"comment,omitempty" bson:"comment,omitempty" gorm:"size:1000"`
}

func (HistoryEntry) TableName() string { return "document_history" }

// RegistryEntry records an approval. DocumentID is unique at the storage
// layer, independent of the document's status.
type RegistryEntry struct {
	ID             int64     `json:"id" bson:"-" gorm:"primaryKey;autoIncrement"`
	DocumentID     int64     `json:"documentId" bson:"_id" gorm:"not null;uniqueIndex"`
	DocumentNumber string    `json:"documentNumber" bson:"documentNumber" gorm:"size:50;not null"`
	ApprovedBy     string    `json:"approvedBy" bson:"approvedBy" gorm:"size:255;not null"`
	ApprovedAt     time.Time `json:"approvedAt" bson:"approvedAt" gorm:"not null"`
}

func (RegistryEntry) TableName() string { return "approval_registry" }

// ResultCode classifies the outcome of one transition attempt.
type ResultCode string

const (
	ResultSuccess       ResultCode = "SUCCESS"
	ResultNotFound      ResultCode = "NOT_FOUND"
	ResultConflict      ResultCode = "CONFLICT"
	ResultRegistryError ResultCode = "REGISTRY_ERROR"
)

// Result is the per-id outcome returned by the engine and the batch processor.
type Result struct {
	ID      int64      `json:"id"`
	Code    ResultCode `json:"result"`
	Message string     `json:"message"`
}

// ConcurrencyReport aggregates the outcomes of one concurrent approval run.
type ConcurrencyReport struct {
	RunID         string        `json:"runId"`
	DocumentID    int64         `json:"documentId"`
	TotalAttempts int           `json:"totalAttempts"`
	SuccessCount  int           `json:"successCount"`
	ConflictCount int           `json:"conflictCount"`
	ErrorCount    int           `json:"errorCount"`
	FinalStatus   Status        `json:"finalStatus"`
	Duration      time.Duration `json:"durationNanos"`
	ArchiveKey    string        `json:"archiveKey,omitempty"`
}
