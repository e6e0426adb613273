package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	jurisdictionsTable = "jurisdictions"
	localitiesTable    = "localities"
)

var jurisdictionStruct = database.NewStruct(new(models.Jurisdiction))

var localityColumns = []string{
	"l.id", "l.name", "l.latitude", "l.longitude", "l.jurisdiction_id",
	"j.code AS jurisdiction_code", "l.is_active",
}

// ReferenceRepository reads the immutable locality reference data.
type ReferenceRepository struct {
	*Repository
}

func NewReferenceRepository(db database.DB, logger ectologger.Logger) *ReferenceRepository {
	return &ReferenceRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *ReferenceRepository) ListActiveJurisdictions(ctx context.Context) ([]models.Jurisdiction, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceRepository.ListActiveJurisdictions")
	defer span.End()

	sb := jurisdictionStruct.SelectFrom(jurisdictionsTable)
	sb.Where(sb.Equal("is_active", true))
	sb.OrderBy("name")

	query, args := sb.Build()
	var jurisdictions []models.Jurisdiction
	if err := r.DB().SelectContext(ctx, &jurisdictions, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list active jurisdictions")
		return nil, internalError("failed to list active jurisdictions")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"jurisdiction_count": len(jurisdictions),
	}).Debugf("Listed active %s", jurisdictionsTable)
	return jurisdictions, nil
}

// ListActiveLocalities returns active localities of active jurisdictions,
// including those without coordinates.
func (r *ReferenceRepository) ListActiveLocalities(ctx context.Context) ([]models.Locality, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceRepository.ListActiveLocalities")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(localityColumns...).
		From(localitiesTable+" l").
		Join(jurisdictionsTable+" j", "j.id = l.jurisdiction_id").
		Where(sb.Equal("l.is_active", true), sb.Equal("j.is_active", true)).
		OrderBy("l.name")

	query, args := sb.Build()
	var localities []models.Locality
	if err := r.DB().SelectContext(ctx, &localities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list active localities")
		return nil, internalError("failed to list active localities")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"locality_count": len(localities),
	}).Debugf("Listed active %s", localitiesTable)
	return localities, nil
}

func (r *ReferenceRepository) GetLocality(ctx context.Context, id uuid.UUID) (*models.Locality, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceRepository.GetLocality")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(localityColumns...).
		From(localitiesTable+" l").
		Join(jurisdictionsTable+" j", "j.id = l.jurisdiction_id").
		Where(sb.Equal("l.id", id))

	query, args := sb.Build()
	var locality models.Locality
	err := r.DB().GetContext(ctx, &locality, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "locality %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"locality_id": id,
		}).Error("failed to get locality")
		return nil, internalError("failed to get locality")
	}

	return &locality, nil
}
