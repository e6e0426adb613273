package repositories

import (
	"context"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	hoursTable   = "operating_hours"
	reviewsTable = "source_reviews"
	photosTable  = "entity_photos"
)

// EnrichmentRepository writes hours, reviews and photos of an entity. Each
// method is independent of the others.
type EnrichmentRepository struct {
	*Repository
}

func NewEnrichmentRepository(db database.DB, logger ectologger.Logger) *EnrichmentRepository {
	return &EnrichmentRepository{
		Repository: NewRepository(db, logger),
	}
}

// ReplaceHours writes the full weekly schedule in one transaction.
func (r *EnrichmentRepository) ReplaceHours(ctx context.Context, entityID uuid.UUID, hours []models.OperatingHours) error {
	ctx, span := tracing.StartSpan(ctx, "EnrichmentRepository.ReplaceHours")
	defer span.End()

	if len(hours) != 7 {
		return BadRequest("operating hours must contain seven days")
	}

	err := database.InTx(ctx, r.DB(), func(ctx context.Context, tx database.Tx) error {
		del := database.NewDeleteBuilder()
		del.DeleteFrom(hoursTable).Where(del.Equal("entity_id", entityID))
		query, args := del.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("entity_id", entityID).Error("failed to clear operating hours")
			return internalError("failed to clear operating hours")
		}

		ib := database.NewInsertBuilder()
		ib.InsertInto(hoursTable).Cols("entity_id", "day_of_week", "open_time", "close_time", "is_closed")
		for _, h := range hours {
			ib.Values(entityID, h.DayOfWeek, h.OpenTime, h.CloseTime, h.IsClosed)
		}
		query, args = ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("entity_id", entityID).Error("failed to insert operating hours")
			return internalError("failed to insert operating hours")
		}
		return nil
	})
	if err != nil {
		if httperror.IsHTTPError(err) {
			return err
		}
		return internalError("failed to write operating hours")
	}

	r.logger.WithContext(ctx).WithField("entity_id", entityID).Debugf("Replaced %s", hoursTable)
	return nil
}

// InsertReviews inserts reviews, skipping any already stored for the entity.
// It returns the number of new rows.
func (r *EnrichmentRepository) InsertReviews(ctx context.Context, reviews []models.SourceReview) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "EnrichmentRepository.InsertReviews")
	defer span.End()

	if len(reviews) == 0 {
		return 0, nil
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(reviewsTable).
		Cols("entity_id", "author_name", "author_photo_url", "rating", "text", "published_at", "source_review_id", "synced_at")
	for _, rv := range reviews {
		ib.Values(rv.EntityID, rv.AuthorName, rv.AuthorPhotoURL, rv.Rating, rv.Text, rv.PublishedAt, rv.SourceReviewID, rv.SyncedAt)
	}
	ib.OnConflictDoNothing("entity_id", "source_review_id")

	query, args := ib.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id":    reviews[0].EntityID,
			"review_count": len(reviews),
		}).Error("failed to insert source reviews")
		return 0, internalError("failed to insert source reviews")
	}

	inserted, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": reviews[0].EntityID,
		"inserted":  inserted,
	}).Debugf("Inserted %s", reviewsTable)
	return int(inserted), nil
}

func (r *EnrichmentRepository) InsertPhotos(ctx context.Context, photos []models.Photo) error {
	ctx, span := tracing.StartSpan(ctx, "EnrichmentRepository.InsertPhotos")
	defer span.End()

	if len(photos) == 0 {
		return nil
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(photosTable).Cols("entity_id", "url", "display_order", "caption")
	for _, p := range photos {
		ib.Values(p.EntityID, p.URL, p.DisplayOrder, p.Caption)
	}

	query, args := ib.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id":   photos[0].EntityID,
			"photo_count": len(photos),
		}).Error("failed to insert entity photos")
		return internalError("failed to insert entity photos")
	}
	return nil
}
