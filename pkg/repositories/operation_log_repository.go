package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const operationLogTable = "operation_log"

var operationLogStruct = database.NewStruct(new(models.OperationLogEntry))

// OperationLogRepository appends to and pages through the audit trail.
// Rows are never updated or deleted.
type OperationLogRepository struct {
	*Repository
}

func NewOperationLogRepository(db database.DB, logger ectologger.Logger) *OperationLogRepository {
	return &OperationLogRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *OperationLogRepository) Append(ctx context.Context, entry *models.OperationLogEntry) error {
	ctx, span := tracing.StartSpan(ctx, "OperationLogRepository.Append")
	defer span.End()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(operationLogTable).
		Cols("id", "action", "entity_type", "entity_id", "actor_id", "actor_email", "new_values", "created_at").
		Values(entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.ActorID, entry.ActorEmail,
			entry.NewValues, sqlbuilder.Raw("NOW()")).
		Returning("created_at")

	query, args := ib.Build()
	if err := r.DB().QueryRowContext(ctx, query, args...).Scan(&entry.CreatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"action":    entry.Action,
			"entity_id": entry.EntityID,
		}).Error("failed to append operation log entry")
		return internalError("failed to append operation log entry")
	}
	return nil
}

// ListPage returns up to limit entries ordered by (created_at, id), strictly
// after the cursor when one is given.
func (r *OperationLogRepository) ListPage(ctx context.Context, entityType, action string, after *LogCursor, limit int) ([]models.OperationLogEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "OperationLogRepository.ListPage")
	defer span.End()

	sb := operationLogStruct.SelectFrom(operationLogTable)
	sb.Where(
		sb.Equal("entity_type", entityType),
		sb.Equal("action", action),
		sb.IsNotNull("new_values"),
	)
	if after != nil {
		sb.Where(sb.Or(
			sb.GreaterThan("created_at", after.CreatedAt),
			sb.And(sb.Equal("created_at", after.CreatedAt), sb.GreaterThan("id", after.ID)),
		))
	}
	sb.OrderBy("created_at", "id").Asc()
	sb.Limit(limit)

	query, args := sb.Build()
	var entries []models.OperationLogEntry
	if err := r.DB().SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_type": entityType,
			"action":      action,
		}).Error("failed to list operation log page")
		return nil, internalError("failed to list operation log page")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entry_count": len(entries),
	}).Debugf("Listed %s page", operationLogTable)
	return entries, nil
}
