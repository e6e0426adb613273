// Package recovery rebuilds lost directory entities by replaying the import
// operation log against the place provider.
package recovery

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectolinq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/importer"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultLogPageSize = 1000
	DefaultRadiusKm    = 30
	// MaxErrorDetails bounds the error messages returned from one batch.
	MaxErrorDetails = 20
)

type Config struct {
	LogPageSize int
	RadiusKm    float64
}

func DefaultConfig() Config {
	return Config{
		LogPageSize: DefaultLogPageSize,
		RadiusKm:    DefaultRadiusKm,
	}
}

// Orchestrator serves the recovery commands.
type Orchestrator struct {
	oplog    repositories.OperationLogRepo
	entities repositories.EntityRepo
	pipeline *importer.Pipeline
	cfg      Config
	logger   ectologger.Logger
}

// NewOrchestrator shares pipeline with the importer so recovery takes the
// same per-place locks.
func NewOrchestrator(oplog repositories.OperationLogRepo, entities repositories.EntityRepo, pipeline *importer.Pipeline, cfg Config, logger ectologger.Logger) *Orchestrator {
	if cfg.LogPageSize <= 0 {
		cfg.LogPageSize = DefaultLogPageSize
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = DefaultRadiusKm
	}
	return &Orchestrator{
		oplog:    oplog,
		entities: entities,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
	}
}

type RecoverableIDs struct {
	Total           int      `json:"total_place_ids"`
	AlreadyRestored int      `json:"already_restored"`
	Remaining       []string `json:"place_ids"`
}

// ListRecoverableIds scans the whole import log and returns the external ids
// that are no longer in the directory, in first-logged order.
func (o *Orchestrator) ListRecoverableIds(ctx context.Context) (*RecoverableIDs, error) {
	ctx, span := tracing.StartSpan(ctx, "Recovery.ListRecoverableIds")
	defer span.End()

	var (
		ids    []string
		seen   = make(map[string]bool)
		cursor *repositories.LogCursor
		rows   int
	)
	for {
		page, err := o.oplog.ListPage(ctx, models.EntityTypeDirectory, models.ActionDirectoryImport, cursor, o.cfg.LogPageSize)
		if err != nil {
			return nil, err
		}
		rows += len(page)
		for _, entry := range page {
			id := entry.ExternalID()
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(page) < o.cfg.LogPageSize {
			break
		}
		last := page[len(page)-1]
		cursor = &repositories.LogCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	existing, err := o.entities.ExistingExternalIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &RecoverableIDs{Total: len(ids), Remaining: []string{}}
	for _, id := range ids {
		if existing[id] {
			result.AlreadyRestored++
			continue
		}
		result.Remaining = append(result.Remaining, id)
	}

	span.SetAttributes(attribute.Int("recovery.remaining", len(result.Remaining)))
	o.logger.WithContext(ctx).WithFields(map[string]any{
		"log_rows":         rows,
		"total":            result.Total,
		"already_restored": result.AlreadyRestored,
		"remaining":        len(result.Remaining),
	}).Info("scanned operation log for recoverable ids")
	return result, nil
}

type BatchResult struct {
	Imported     int      `json:"imported"`
	Skipped      int      `json:"skipped"`
	Errors       int      `json:"errors"`
	ErrorDetails []string `json:"error_details"`
	ImportedIDs  []string `json:"imported_ids"`
	SkippedIDs   []string `json:"skipped_ids,omitempty"`
}

// RecoverBatch rebuilds the given ids at recovery fidelity. Ids already in
// the directory count as skipped, so the call is safe to repeat.
func (o *Orchestrator) RecoverBatch(ctx context.Context, externalIDs []string) (*BatchResult, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "Recovery.RecoverBatch",
		attribute.Int("batch.size", len(externalIDs)),
	)
	defer span.End()

	result := &BatchResult{ErrorDetails: []string{}, ImportedIDs: []string{}}
	if len(externalIDs) == 0 {
		return result, nil
	}

	batch, err := o.pipeline.NewBatch(ctx, importer.RecoveryProfile(o.cfg.RadiusKm), importer.BatchOptions{})
	if err != nil {
		return nil, err
	}

	run, runErr := o.pipeline.Run(ctx, batch, externalIDs)
	if run == nil {
		return nil, runErr
	}

	result.Imported = len(run.Imported)
	result.Skipped = len(run.Skipped) + len(run.Duplicates)
	result.Errors = len(run.Errors)
	result.ImportedIDs = append(result.ImportedIDs, ectolinq.Map(run.Imported, func(item importer.ImportedItem) string {
		return item.ExternalID
	})...)
	result.SkippedIDs = append(result.SkippedIDs, run.Skipped...)
	result.ErrorDetails = append(result.ErrorDetails, ectolinq.Take(ectolinq.Map(run.Errors, func(e importer.ItemError) string {
		return e.Message
	}), MaxErrorDetails)...)
	return result, runErr
}

// Status reports the current directory counts.
func (o *Orchestrator) Status(ctx context.Context) (*models.DirectoryCounts, error) {
	ctx, span := tracing.StartSpan(ctx, "Recovery.Status")
	defer span.End()
	return o.entities.Counts(ctx)
}
