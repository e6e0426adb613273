package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

const (
	ActionDirectoryImport = "DIRECTORY_IMPORT"
	EntityTypeDirectory   = "directory_entity"
)

// OperationLogEntry is an append-only audit record. NewValues carries the
// external_id that recovery replays from.
type OperationLogEntry struct {
	ID         uuid.UUID                      `db:"id" json:"id"`
	Action     string                         `db:"action" json:"action"`
	EntityType string                         `db:"entity_type" json:"entity_type"`
	EntityID   *uuid.UUID                     `db:"entity_id" json:"entity_id,omitempty"`
	ActorID    *string                        `db:"actor_id" json:"actor_id,omitempty"`
	ActorEmail *string                        `db:"actor_email" json:"actor_email,omitempty"`
	NewValues  database.JSONB[map[string]any] `db:"new_values" json:"new_values"`
	CreatedAt  time.Time                      `db:"created_at" json:"created_at"`
}

func (OperationLogEntry) TableName() string {
	return "operation_log"
}

// ExternalID reads the external identifier recorded in NewValues.
func (e OperationLogEntry) ExternalID() string {
	if e.NewValues.Data == nil {
		return ""
	}
	id, _ := e.NewValues.Data["external_id"].(string)
	return id
}

const (
	BatchKindImport   = "import"
	BatchKindRecovery = "recovery"
)

// ImportBatch summarises one import or recovery request.
type ImportBatch struct {
	ID             uuid.UUID                `db:"id" json:"id"`
	Kind           string                   `db:"kind" json:"kind"`
	SessionID      *uuid.UUID               `db:"session_id" json:"session_id,omitempty"`
	RequestedCount int                      `db:"requested_count" json:"requested_count"`
	ImportedCount  int                      `db:"imported_count" json:"imported_count"`
	DuplicateCount int                      `db:"duplicate_count" json:"duplicate_count"`
	SkippedCount   int                      `db:"skipped_count" json:"skipped_count"`
	ErrorCount     int                      `db:"error_count" json:"error_count"`
	ErrorLog       database.JSONB[[]string] `db:"error_log" json:"error_log"`
	ActorID        *string                  `db:"actor_id" json:"actor_id,omitempty"`
	StartedAt      time.Time                `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time               `db:"completed_at" json:"completed_at,omitempty"`
}

func (ImportBatch) TableName() string {
	return "import_batches"
}

type Setting struct {
	Key   string                         `db:"key" json:"key"`
	Value database.JSONB[map[string]any] `db:"value" json:"value"`
}

func (Setting) TableName() string {
	return "settings"
}

// DirectoryCounts is the recovery status snapshot.
type DirectoryCounts struct {
	Entities       int `db:"entities" json:"entities"`
	OperatingHours int `db:"operating_hours" json:"operating_hours"`
	SourceReviews  int `db:"source_reviews" json:"source_reviews"`
	Practitioners  int `db:"practitioners" json:"practitioners"`
}
