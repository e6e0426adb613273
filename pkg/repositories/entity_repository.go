package repositories

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	entitiesTable = "directory_entities"

	externalIDConstraint = "directory_entities_external_id_key"
	slugConstraint       = "directory_entities_slug_key"
)

// EntityRepository handles database operations for directory entities
type EntityRepository struct {
	*Repository
	chunkSize int
}

func NewEntityRepository(db database.DB, logger ectologger.Logger, chunkSize int) *EntityRepository {
	if chunkSize <= 0 {
		chunkSize = DefaultExistenceChunkSize
	}
	return &EntityRepository{
		Repository: NewRepository(db, logger),
		chunkSize:  chunkSize,
	}
}

// Create inserts a new entity. Unique violations on external_id and slug are
// reported as ErrDuplicateExternalID and ErrSlugTaken.
func (r *EntityRepository) Create(ctx context.Context, entity *models.DirectoryEntity) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Create")
	defer span.End()

	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.StructuredMetadata.Data == nil {
		entity.StructuredMetadata.Data = map[string]any{}
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(entitiesTable).
		Cols("id", "external_id", "name", "slug", "address", "phone", "website", "maps_url",
			"latitude", "longitude", "locality_id", "area_id", "rating", "review_count",
			"cover_image_url", "description", "structured_metadata", "source", "is_active",
			"claim_status", "verification_status", "created_at", "updated_at").
		Values(entity.ID, entity.ExternalID, entity.Name, entity.Slug, entity.Address, entity.Phone,
			entity.Website, entity.MapsURL, entity.Latitude, entity.Longitude, entity.LocalityID,
			entity.AreaID, entity.Rating, entity.ReviewCount, entity.CoverImageURL, entity.Description,
			entity.StructuredMetadata, entity.Source, entity.IsActive, entity.ClaimStatus,
			entity.VerificationStatus, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&entity.CreatedAt, &entity.UpdatedAt)
	switch {
	case err == nil:
	case database.IsUniqueViolation(err, externalIDConstraint):
		return ErrDuplicateExternalID
	case database.IsUniqueViolation(err, slugConstraint):
		return ErrSlugTaken
	default:
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id":   entity.ID,
			"external_id": entity.ExternalID,
		}).Error("failed to create directory entity")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create directory entity: %s", err.Error())
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": entity.ID,
		"slug":      entity.Slug,
	}).Debugf("Created %s", entitiesTable)
	return nil
}

func (r *EntityRepository) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	existing, err := r.ExistingExternalIDs(ctx, []string{externalID})
	if err != nil {
		return false, err
	}
	return existing[externalID], nil
}

// ExistingExternalIDs returns the subset of externalIDs already in the
// directory, querying in bounded chunks.
func (r *EntityRepository) ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]bool, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.ExistingExternalIDs")
	defer span.End()

	existing := make(map[string]bool, len(externalIDs))
	for _, ids := range chunk(externalIDs, r.chunkSize) {
		sb := database.NewSelectBuilder()
		sb.Select("external_id").
			From(entitiesTable).
			Where(sb.In("external_id", database.Placeholders(ids)...))

		query, args := sb.Build()
		var found []string
		if err := r.DB().SelectContext(ctx, &found, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"chunk_size": len(ids),
			}).Error("failed to check existing external ids")
			return nil, internalError("failed to check existing external ids")
		}
		for _, id := range found {
			existing[id] = true
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"requested": len(externalIDs),
		"existing":  len(existing),
	}).Debugf("Checked %s existence", entitiesTable)
	return existing, nil
}

func (r *EntityRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.SlugExists")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("1").From(entitiesTable).Where(sb.Equal("slug", slug)).Limit(1)
	query, args := sb.Build()

	var found []int
	if err := r.DB().SelectContext(ctx, &found, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"slug": slug,
		}).Error("failed to check slug")
		return false, internalError("failed to check slug")
	}
	return len(found) > 0, nil
}

// FindByPhoneSuffix matches entities whose stored phone contains the digit suffix.
func (r *EntityRepository) FindByPhoneSuffix(ctx context.Context, suffix string) ([]models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.FindByPhoneSuffix")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "name", "phone", "address", "external_id").
		From(entitiesTable).
		Where(sb.Like("regexp_replace(coalesce(phone, ''), '[^0-9]', '', 'g')", "%"+suffix+"%")).
		OrderBy("name").
		Limit(20)

	query, args := sb.Build()
	var candidates []models.DuplicateCandidate
	if err := r.DB().SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to search entities by phone")
		return nil, internalError("failed to search entities by phone")
	}
	return candidates, nil
}

func (r *EntityRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.DeleteByExternalID")
	defer span.End()

	del := database.NewDeleteBuilder()
	del.DeleteFrom(entitiesTable).Where(del.Equal("external_id", externalID))

	query, args := del.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"external_id": externalID,
		}).Error("failed to delete directory entity")
		return internalError("failed to delete directory entity")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("directory entity with external id %s does not exist", externalID)
	}
	return nil
}

func (r *EntityRepository) Counts(ctx context.Context) (*models.DirectoryCounts, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Counts")
	defer span.End()

	query := `SELECT
		(SELECT COUNT(*) FROM directory_entities) AS entities,
		(SELECT COUNT(*) FROM operating_hours) AS operating_hours,
		(SELECT COUNT(*) FROM source_reviews) AS source_reviews,
		(SELECT COUNT(*) FROM practitioners) AS practitioners`

	var counts models.DirectoryCounts
	if err := r.DB().GetContext(ctx, &counts, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count directory records")
		return nil, internalError("failed to count directory records")
	}
	return &counts, nil
}
