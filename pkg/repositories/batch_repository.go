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
	importBatchesTable = "import_batches"
	settingsTable      = "settings"
)

var settingStruct = database.NewStruct(new(models.Setting))

type ImportBatchRepository struct {
	*Repository
}

func NewImportBatchRepository(db database.DB, logger ectologger.Logger) *ImportBatchRepository {
	return &ImportBatchRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *ImportBatchRepository) Create(ctx context.Context, batch *models.ImportBatch) error {
	ctx, span := tracing.StartSpan(ctx, "ImportBatchRepository.Create")
	defer span.End()

	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	if batch.ErrorLog.Data == nil {
		batch.ErrorLog.Data = []string{}
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(importBatchesTable).
		Cols("id", "kind", "session_id", "requested_count", "imported_count", "duplicate_count",
			"skipped_count", "error_count", "error_log", "actor_id", "started_at", "completed_at").
		Values(batch.ID, batch.Kind, batch.SessionID, batch.RequestedCount, batch.ImportedCount,
			batch.DuplicateCount, batch.SkippedCount, batch.ErrorCount, batch.ErrorLog, batch.ActorID,
			batch.StartedAt, batch.CompletedAt)

	query, args := ib.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_id": batch.ID,
			"kind":     batch.Kind,
		}).Error("failed to create import batch")
		return internalError("failed to create import batch")
	}
	return nil
}

type SettingsRepository struct {
	*Repository
}

func NewSettingsRepository(db database.DB, logger ectologger.Logger) *SettingsRepository {
	return &SettingsRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	ctx, span := tracing.StartSpan(ctx, "SettingsRepository.Get")
	defer span.End()

	sb := settingStruct.SelectFrom(settingsTable)
	sb.Where(sb.Equal("key", key))

	query, args := sb.Build()
	var setting models.Setting
	err := r.DB().GetContext(ctx, &setting, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "setting '%s' does not exist", key)
	}
	if database.IsUndefinedTable(err) {
		r.logger.WithContext(ctx).WithField("key", key).Warn("settings table does not exist, run migrations")
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "setting '%s' does not exist", key)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("failed to get setting")
		return nil, internalError("failed to get setting")
	}
	return &setting, nil
}
