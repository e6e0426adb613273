package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ReferenceRepo reads jurisdictions and localities.
type ReferenceRepo interface {
	ListActiveJurisdictions(ctx context.Context) ([]models.Jurisdiction, error)
	ListActiveLocalities(ctx context.Context) ([]models.Locality, error)
	GetLocality(ctx context.Context, id uuid.UUID) (*models.Locality, error)
}

// EntityRepo persists directory entities.
type EntityRepo interface {
	Create(ctx context.Context, entity *models.DirectoryEntity) error
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]bool, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	FindByPhoneSuffix(ctx context.Context, suffix string) ([]models.DuplicateCandidate, error)
	DeleteByExternalID(ctx context.Context, externalID string) error
	Counts(ctx context.Context) (*models.DirectoryCounts, error)
}

// EnrichmentRepo writes the sub-records of an entity.
type EnrichmentRepo interface {
	ReplaceHours(ctx context.Context, entityID uuid.UUID, hours []models.OperatingHours) error
	InsertReviews(ctx context.Context, reviews []models.SourceReview) (int, error)
	InsertPhotos(ctx context.Context, photos []models.Photo) error
}

// LogCursor is the keyset position of the last row of a page.
type LogCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// OperationLogRepo appends to and scans the operation log.
type OperationLogRepo interface {
	Append(ctx context.Context, entry *models.OperationLogEntry) error
	ListPage(ctx context.Context, entityType, action string, after *LogCursor, limit int) ([]models.OperationLogEntry, error)
}

type ImportBatchRepo interface {
	Create(ctx context.Context, batch *models.ImportBatch) error
}

type SettingsRepo interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
}
