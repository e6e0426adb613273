package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/execution"
	"github.com/Ramsey-B/fern/pkg/geo"
	"github.com/Ramsey-B/fern/pkg/jurisdiction"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/places"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/slug"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// PlaceProvider is implemented by places.Client.
type PlaceProvider interface {
	SearchText(ctx context.Context, query, pageToken string) (*places.SearchPage, error)
	GetDetails(ctx context.Context, externalID, fieldMask string) (*places.Place, error)
	FetchPhotoBytes(ctx context.Context, photoRef string, maxWidthPx int) ([]byte, string, error)
}

// PhotoStore is implemented by storage.Persister.
type PhotoStore interface {
	PersistPhoto(ctx context.Context, data []byte, contentType, slugHint string, index int) (string, error)
}

// Locker is implemented by redis.Locker.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// EventPublisher is implemented by kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, evt *kafka.DirectoryEvent) error
}

// Deps are the collaborators of the item pipeline. Photos, Locker and Events
// may be nil; without Photos no photo is downloaded.
type Deps struct {
	Reference  repositories.ReferenceRepo
	Entities   repositories.EntityRepo
	Enrichment repositories.EnrichmentRepo
	OpLog      repositories.OperationLogRepo
	Batches    repositories.ImportBatchRepo
	Places     PlaceProvider
	Photos     PhotoStore
	Locker     Locker
	Events     EventPublisher
}

type PipelineConfig struct {
	Concurrency    int
	LockTTL        time.Duration
	CountryMarkers []string
}

// Pipeline is the per-item import state machine shared by import and recovery.
type Pipeline struct {
	deps   Deps
	cfg    PipelineConfig
	logger ectologger.Logger
	now    func() time.Time
}

func NewPipeline(deps Deps, cfg PipelineConfig, logger ectologger.Logger) *Pipeline {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Pipeline{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// BatchOptions carries request-level inputs of one batch.
type BatchOptions struct {
	DefaultLocalityID *uuid.UUID
	AreaID            *uuid.UUID
	SessionID         *uuid.UUID
}

// Batch is the reference snapshot and slug reservations of one run.
type Batch struct {
	ID              uuid.UUID
	Profile         Profile
	DefaultLocality *models.Locality
	AreaID          *uuid.UUID
	SessionID       *uuid.UUID

	matcher       *geo.Matcher
	parser        *jurisdiction.Parser
	slugs         *slug.Allocator
	jurisdictions []string
}

// NewBatch loads reference data once for the batch. A DefaultLocalityID that
// does not exist is a 404.
func (p *Pipeline) NewBatch(ctx context.Context, profile Profile, opts BatchOptions) (*Batch, error) {
	ctx, span := tracing.StartSpan(ctx, "Pipeline.NewBatch")
	defer span.End()

	jurisdictions, err := p.deps.Reference.ListActiveJurisdictions(ctx)
	if err != nil {
		return nil, err
	}
	localities, err := p.deps.Reference.ListActiveLocalities(ctx)
	if err != nil {
		return nil, err
	}

	batch := &Batch{
		ID:        uuid.New(),
		Profile:   profile,
		AreaID:    opts.AreaID,
		SessionID: opts.SessionID,
		matcher:   geo.NewMatcher(localities, p.logger),
		parser:    jurisdiction.NewParser(jurisdictions, p.cfg.CountryMarkers, p.logger),
		slugs:     slug.NewAllocator(p.deps.Entities),
	}
	for _, j := range jurisdictions {
		if j.IsActive {
			batch.jurisdictions = append(batch.jurisdictions, j.Name)
		}
	}
	span.SetAttributes(attribute.Int("batch.localities", batch.matcher.Len()))
	if batch.matcher.Len() == 0 {
		p.logger.WithContext(ctx).WithField("batch_id", batch.ID).Warn("no active locality has coordinates, geo matching will always fall back")
	}

	if opts.DefaultLocalityID != nil {
		locality, err := p.deps.Reference.GetLocality(ctx, *opts.DefaultLocalityID)
		if err != nil {
			return nil, err
		}
		batch.DefaultLocality = locality
	}

	return batch, nil
}

type Outcome string

const (
	OutcomeImported  Outcome = "imported"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// ImportedItem describes one persisted entity.
type ImportedItem struct {
	ExternalID   string    `json:"external_id"`
	EntityID     uuid.UUID `json:"entity_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	LocalityID   uuid.UUID `json:"locality_id"`
	LocalityName string    `json:"locality_name"`
	DistanceKm   *float64  `json:"distance_km,omitempty"`
	Photos       int       `json:"photos"`
	Reviews      int       `json:"reviews"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// ItemResult is the outcome of one external id.
type ItemResult struct {
	ExternalID string
	Outcome    Outcome
	Entity     *ImportedItem
	Err        *ItemError
	// SkipReason is set for skipped items, e.g. "abc (XX)".
	SkipReason string
}

// BatchResult aggregates item results in input order.
type BatchResult struct {
	BatchID    uuid.UUID
	Items      []ItemResult
	Imported   []ImportedItem
	Duplicates []string
	Skipped    []string
	Errors     []ItemError
	// Aborted is set when a configuration error stopped the batch.
	Aborted error
}

// Run drives every id through the pipeline with bounded concurrency. Item
// failures are collected; only a places.ConfigurationError aborts the batch,
// and it is also returned as the error. Cancelling ctx stops dispatching new
// items; an item in flight runs to completion.
func (p *Pipeline) Run(ctx context.Context, batch *Batch, externalIDs []string) (*BatchResult, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "Pipeline.Run",
		attribute.String("batch.id", batch.ID.String()),
		attribute.String("batch.mode", batch.Profile.Mode),
		attribute.Int("batch.size", len(externalIDs)),
	)
	defer span.End()

	started := p.now()
	actor := appctx.GetActor(ctx)

	fanout := execution.Fanout(ctx, p.logger, externalIDs, execution.Options{
		Concurrency: p.cfg.Concurrency,
		AbortOn:     places.IsConfigurationError,
	}, func(itemCtx context.Context, _ int, externalID string) (ItemResult, error) {
		// the item finishes its writes even if the request goes away
		return p.processLocked(context.WithoutCancel(itemCtx), batch, externalID)
	})

	result := &BatchResult{BatchID: batch.ID}
	for i, r := range fanout.Results {
		item := r.Value
		switch {
		case !r.Ran:
			item = ItemResult{
				ExternalID: externalIDs[i],
				Outcome:    OutcomeFailed,
				Err:        itemErrorf(externalIDs[i], KindNotProcessed, nil, "%s: not processed, batch stopped early", externalIDs[i]),
			}
		case r.Err != nil && item.Outcome == "":
			item = ItemResult{
				ExternalID: externalIDs[i],
				Outcome:    OutcomeFailed,
				Err:        itemErrorf(externalIDs[i], KindProvider, r.Err, "%s: %s", externalIDs[i], r.Err.Error()),
			}
		}
		result.add(item)
		metrics.RecordItem(batch.Profile.Mode, string(item.Outcome))
	}
	if fanout.AbortTriggered {
		result.Aborted = fanout.AbortErr
	}

	p.finishBatch(ctx, batch, result, actor, started, len(externalIDs))
	metrics.RecordBatch(batch.Profile.Mode, p.now().Sub(started))

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":   batch.ID,
		"mode":       batch.Profile.Mode,
		"imported":   len(result.Imported),
		"duplicates": len(result.Duplicates),
		"skipped":    len(result.Skipped),
		"errors":     len(result.Errors),
	}).Info("batch finished")

	if result.Aborted != nil {
		return result, result.Aborted
	}
	return result, nil
}

func (r *BatchResult) add(item ItemResult) {
	r.Items = append(r.Items, item)
	switch item.Outcome {
	case OutcomeImported:
		r.Imported = append(r.Imported, *item.Entity)
	case OutcomeDuplicate:
		r.Duplicates = append(r.Duplicates, item.ExternalID)
	case OutcomeSkipped:
		r.Skipped = append(r.Skipped, item.SkipReason)
	case OutcomeFailed:
		if item.Err != nil {
			r.Errors = append(r.Errors, *item.Err)
		}
	}
}

// processLocked serialises work on one external id across overlapping batches.
func (p *Pipeline) processLocked(ctx context.Context, batch *Batch, externalID string) (ItemResult, error) {
	if p.deps.Locker == nil {
		return p.process(ctx, batch, externalID)
	}

	var result ItemResult
	err := p.deps.Locker.WithLock(ctx, "place:"+places.ExtractID(externalID), p.cfg.LockTTL, func(ctx context.Context) error {
		var err error
		result, err = p.process(ctx, batch, externalID)
		return err
	})
	if errors.Is(err, redis.ErrLockNotAcquired) {
		return ItemResult{
			ExternalID: externalID,
			Outcome:    OutcomeFailed,
			Err:        itemErrorf(externalID, KindInProgress, err, "%s: another import of this place is in progress", externalID),
		}, nil
	}
	if err != nil && result.ExternalID == "" {
		if places.IsConfigurationError(err) {
			return result, err
		}
		// the lock backend failed before the item ran
		return ItemResult{
			ExternalID: externalID,
			Outcome:    OutcomeFailed,
			Err:        itemErrorf(externalID, KindPersistence, err, "%s: failed to lock item: %s", externalID, err.Error()),
		}, nil
	}
	return result, err
}

// process runs one id: duplicate check, details, jurisdiction, locality,
// slug, photos, entity insert, enrichment, operation log.
func (p *Pipeline) process(ctx context.Context, batch *Batch, externalID string) (ItemResult, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "Pipeline.process",
		attribute.String("external_id", externalID),
	)
	defer span.End()

	id := places.ExtractID(externalID)
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":    batch.ID,
		"external_id": id,
		"mode":        batch.Profile.Mode,
	})

	exists, err := p.deps.Entities.ExistsByExternalID(ctx, id)
	if err != nil {
		return failed(id, KindPersistence, err, "%s: duplicate check failed: %s", id, err.Error()), nil
	}
	if exists {
		return p.existing(batch, id), nil
	}

	place, err := p.deps.Places.GetDetails(ctx, id, batch.Profile.FieldMask)
	if err != nil {
		if places.IsConfigurationError(err) {
			return ItemResult{ExternalID: id, Outcome: OutcomeFailed, Err: itemErrorf(id, KindProvider, err, "%s", err.Error())}, err
		}
		if batch.Profile.Recovery && places.IsNotFound(err) {
			return failed(id, KindInconsistency, err, "%s: logged place no longer exists at the provider", id), nil
		}
		return failed(id, KindProvider, err, "Failed to fetch %s: %s", id, providerMessage(err)), nil
	}
	if place.ExternalID != "" {
		id = place.ExternalID
	}
	name := place.Name
	if name == "" {
		name = "Unknown"
	}

	region := batch.parser.Extract(place.Address)
	if !region.IsValid {
		code := region.Code
		if code == "" {
			code = "unknown"
		}
		if batch.Profile.Recovery {
			return ItemResult{ExternalID: id, Outcome: OutcomeSkipped, SkipReason: fmt.Sprintf("%s (%s)", id, code)}, nil
		}
		log.Warnf("skipping %s: address %q is not in an active jurisdiction", name, place.Address)
		return failed(id, KindJurisdiction, nil, "%s: not in an active jurisdiction (%s). Only importing from: %s",
			name, code, strings.Join(batch.jurisdictions, ", ")), nil
	}

	locality, distance, err := p.resolveLocality(batch, place, region.Code)
	if err != nil {
		return failed(id, KindLocality, err, "%s: %s", name, err.Error()), nil
	}

	slugValue, err := batch.slugs.Allocate(ctx, name, locality.Name)
	if err != nil {
		return failed(id, KindPersistence, err, "%s: failed to allocate slug: %s", name, err.Error()), nil
	}

	photoURLs := p.persistPhotos(ctx, batch, place, slugValue)

	entity := p.newEntity(batch, place, id, name, slugValue, locality, photoURLs)
	if err := p.insert(ctx, batch, entity, locality.Name); err != nil {
		if errors.Is(err, repositories.ErrDuplicateExternalID) {
			return p.existing(batch, id), nil
		}
		log.WithError(err).Errorf("failed to insert %s", name)
		return failed(id, KindPersistence, err, "Failed to insert %s: %s", name, err.Error()), nil
	}

	imported := &ImportedItem{
		ExternalID:   id,
		EntityID:     entity.ID,
		Name:         name,
		Slug:         entity.Slug,
		LocalityID:   locality.ID,
		LocalityName: locality.Name,
		DistanceKm:   distance,
		Photos:       len(photoURLs),
	}
	p.enrich(ctx, batch, place, entity, photoURLs, imported)
	p.appendLog(ctx, batch, entity, imported)
	p.publish(ctx, batch, imported)

	log.Infof("imported %s as %s (%s)", name, entity.Slug, locality.Name)
	return ItemResult{ExternalID: id, Outcome: OutcomeImported, Entity: imported}, nil
}

func failed(id string, kind Kind, err error, format string, args ...any) ItemResult {
	return ItemResult{ExternalID: id, Outcome: OutcomeFailed, Err: itemErrorf(id, kind, err, format, args...)}
}

// existing is the outcome for an id already in the directory.
func (p *Pipeline) existing(batch *Batch, id string) ItemResult {
	if batch.Profile.Recovery {
		return ItemResult{ExternalID: id, Outcome: OutcomeSkipped, SkipReason: id}
	}
	return ItemResult{ExternalID: id, Outcome: OutcomeDuplicate}
}

func providerMessage(err error) string {
	var provErr *places.ProviderError
	if errors.As(err, &provErr) {
		return provErr.Message
	}
	return err.Error()
}

// resolveLocality geo-matches the place. Import falls back to the batch
// default locality; recovery falls back to the first locality of the
// jurisdiction and fails when there is none.
func (p *Pipeline) resolveLocality(batch *Batch, place *places.Place, code string) (models.Locality, *float64, error) {
	if place.Location != nil {
		match, err := batch.matcher.FindWithWidening(place.Location.Latitude, place.Location.Longitude, code,
			batch.Profile.RadiusKm, batch.Profile.WidenFactor)
		if err == nil {
			d := match.DistanceKm
			return match.Locality, &d, nil
		}
		if !errors.Is(err, geo.ErrNotFound) {
			return models.Locality{}, nil, err
		}
	}

	if batch.Profile.Recovery {
		if code != "" {
			if l, ok := batch.matcher.FirstInJurisdiction(code); ok {
				return l, nil, nil
			}
		} else {
			code = "unknown"
		}
		return models.Locality{}, nil, fmt.Errorf("no locality found for jurisdiction %s", code)
	}

	if batch.DefaultLocality == nil {
		return models.Locality{}, nil, errors.New("no locality matched and no default locality was given")
	}
	p.logger.WithFields(map[string]any{
		"external_id": place.ExternalID,
		"locality":    batch.DefaultLocality.Name,
	}).Warnf("no nearby locality for %s, using default %s", place.Name, batch.DefaultLocality.Name)
	return *batch.DefaultLocality, nil, nil
}

// persistPhotos stores photos best-effort and returns the URLs that were
// persisted, in provider order.
func (p *Pipeline) persistPhotos(ctx context.Context, batch *Batch, place *places.Place, slugValue string) []string {
	if p.deps.Photos == nil {
		return nil
	}
	count := batch.Profile.photoCount(len(place.Photos))
	urls := make([]string, 0, count)
	for i := 0; i < count; i++ {
		ref := place.Photos[i]
		if ref.Name == "" {
			continue
		}

		data, contentType, err := p.deps.Places.FetchPhotoBytes(ctx, ref.Name, batch.Profile.photoWidth(i))
		if err != nil {
			metrics.RecordPhoto("fetch_failed")
			p.logger.WithContext(ctx).WithError(err).Warnf("failed to download photo %d for %s", i, place.Name)
			continue
		}

		url, err := p.deps.Photos.PersistPhoto(ctx, data, contentType, slugValue, i)
		if err != nil {
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

func (p *Pipeline) newEntity(batch *Batch, place *places.Place, id, name, slugValue string, locality models.Locality, photoURLs []string) *models.DirectoryEntity {
	now := p.now().UTC()
	entity := &models.DirectoryEntity{
		ID:                 uuid.New(),
		ExternalID:         &id,
		Name:               name,
		Slug:               slugValue,
		Address:            optional(place.Address),
		Phone:              optional(place.Phone()),
		Website:            optional(place.Website),
		MapsURL:            optional(place.MapsURL),
		LocalityID:         locality.ID,
		AreaID:             batch.AreaID,
		Rating:             place.Rating,
		ReviewCount:        place.RatingCount,
		Description:        optional(places.Description(place)),
		StructuredMetadata: database.NewJSONB(buildMetadata(place, batch.Profile, len(photoURLs), now)),
		Source:             models.SourceProvider,
		IsActive:           true,
		ClaimStatus:        models.ClaimStatusUnclaimed,
		VerificationStatus: models.VerificationStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if batch.Profile.Recovery {
		entity.AreaID = nil
	}
	if place.Location != nil {
		lat, lng := place.Location.Latitude, place.Location.Longitude
		entity.Latitude = &lat
		entity.Longitude = &lng
	}
	if len(photoURLs) > 0 {
		entity.CoverImageURL = &photoURLs[0]
	}
	return entity
}

// insert writes the entity, taking a fresh slug once if another writer won the slug.
func (p *Pipeline) insert(ctx context.Context, batch *Batch, entity *models.DirectoryEntity, disambiguator string) error {
	err := p.deps.Entities.Create(ctx, entity)
	if !errors.Is(err, repositories.ErrSlugTaken) {
		if err != nil {
			batch.slugs.Release(entity.Slug)
		}
		return err
	}

	next, allocErr := batch.slugs.Allocate(ctx, entity.Name, disambiguator)
	if allocErr != nil {
		return allocErr
	}
	entity.Slug = next
	if err = p.deps.Entities.Create(ctx, entity); err != nil {
		batch.slugs.Release(next)
	}
	return err
}

// enrich writes hours, reviews, and photo rows independently. Failures are
// recorded as warnings; the entity stays.
func (p *Pipeline) enrich(ctx context.Context, batch *Batch, place *places.Place, entity *models.DirectoryEntity, photoURLs []string, item *ImportedItem) {
	warn := func(kind string, err error) {
		metrics.RecordEnrichmentFailure(kind)
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": entity.ID,
			"kind":      kind,
		}).Errorf("failed to write %s for %s", kind, entity.Name)
		item.Warnings = append(item.Warnings, fmt.Sprintf("failed to write %s", kind))
	}

	if err := p.deps.Enrichment.ReplaceHours(ctx, entity.ID, hoursRows(entity.ID, place.Hours)); err != nil {
		warn("operating_hours", err)
	}

	if len(place.Reviews) > 0 {
		n, err := p.deps.Enrichment.InsertReviews(ctx, reviewRows(entity.ID, item.ExternalID, place.Reviews, p.now().UTC()))
		if err != nil {
			warn("source_reviews", err)
		}
		item.Reviews = n
	}

	if len(photoURLs) > 0 && !batch.Profile.Recovery {
		if err := p.deps.Enrichment.InsertPhotos(ctx, photoRows(entity.ID, photoURLs)); err != nil {
			warn("entity_photos", err)
		}
	}
}

func hoursRows(entityID uuid.UUID, hours *places.OpeningHours) []models.OperatingHours {
	week := places.WeeklySchedule(hours)
	rows := make([]models.OperatingHours, 0, len(week))
	for _, d := range week {
		rows = append(rows, models.OperatingHours{
			EntityID:  entityID,
			DayOfWeek: d.Day,
			OpenTime:  d.Open,
			CloseTime: d.Close,
			IsClosed:  d.IsClosed,
		})
	}
	return rows
}

func reviewRows(entityID uuid.UUID, externalID string, reviews []places.Review, syncedAt time.Time) []models.SourceReview {
	rows := make([]models.SourceReview, 0, len(reviews))
	for _, r := range reviews {
		author := r.Author.DisplayName
		if author == "" {
			author = "Anonymous"
		}
		text := r.Text
		rows = append(rows, models.SourceReview{
			EntityID:       entityID,
			AuthorName:     author,
			AuthorPhotoURL: optional(r.Author.PhotoURI),
			Rating:         r.Rating,
			Text:           &text,
			PublishedAt:    r.PublishedAt,
			SourceReviewID: fmt.Sprintf("%s_%s_%s", models.SourceProvider, externalID, r.Name),
			SyncedAt:       syncedAt,
		})
	}
	return rows
}

func photoRows(entityID uuid.UUID, urls []string) []models.Photo {
	rows := make([]models.Photo, 0, len(urls))
	for i, url := range urls {
		caption := "Main Photo"
		if i > 0 {
			caption = fmt.Sprintf("Photo %d", i+1)
		}
		rows = append(rows, models.Photo{EntityID: entityID, URL: url, DisplayOrder: i, Caption: caption})
	}
	return rows
}

func (p *Pipeline) appendLog(ctx context.Context, batch *Batch, entity *models.DirectoryEntity, item *ImportedItem) {
	actor := appctx.GetActor(ctx)
	values := map[string]any{
		"external_id":  item.ExternalID,
		"name":         item.Name,
		"slug":         item.Slug,
		"locality_id":  item.LocalityID.String(),
		"photos_count": item.Photos,
		"batch_id":     batch.ID.String(),
	}
	if batch.Profile.Recovery {
		values["recovery_mode"] = true
	}

	entry := &models.OperationLogEntry{
		Action:     models.ActionDirectoryImport,
		EntityType: models.EntityTypeDirectory,
		EntityID:   &entity.ID,
		ActorID:    optional(actor.ID),
		ActorEmail: optional(actor.Email),
		NewValues:  database.NewJSONB(values),
	}
	if err := p.deps.OpLog.Append(ctx, entry); err != nil {
		metrics.RecordEnrichmentFailure("operation_log")
		p.logger.WithContext(ctx).WithError(err).WithField("entity_id", entity.ID).Error("failed to append operation log")
		item.Warnings = append(item.Warnings, "failed to write operation_log")
	}
}

func (p *Pipeline) publish(ctx context.Context, batch *Batch, item *ImportedItem) {
	if p.deps.Events == nil {
		return
	}
	eventType := kafka.EventEntityImported
	if batch.Profile.Recovery {
		eventType = kafka.EventEntityRecovered
	}
	err := p.deps.Events.Publish(ctx, &kafka.DirectoryEvent{
		Type:       eventType,
		EntityID:   item.EntityID.String(),
		ExternalID: item.ExternalID,
		Slug:       item.Slug,
		LocalityID: item.LocalityID.String(),
		BatchID:    batch.ID.String(),
		ActorID:    appctx.GetActor(ctx).ID,
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("failed to publish directory event")
	}
}

// finishBatch records the batch row and completion event. Both are best-effort.
func (p *Pipeline) finishBatch(ctx context.Context, batch *Batch, result *BatchResult, actor appctx.Actor, started time.Time, requested int) {
	ctx = context.WithoutCancel(ctx)
	completed := p.now().UTC()

	errorLog := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errorLog = append(errorLog, e.Message)
	}

	row := &models.ImportBatch{
		ID:             batch.ID,
		Kind:           batch.Profile.Mode,
		SessionID:      batch.SessionID,
		RequestedCount: requested,
		ImportedCount:  len(result.Imported),
		DuplicateCount: len(result.Duplicates),
		SkippedCount:   len(result.Skipped),
		ErrorCount:     len(result.Errors),
		ErrorLog:       database.NewJSONB(errorLog),
		ActorID:        optional(actor.ID),
		StartedAt:      started.UTC(),
		CompletedAt:    &completed,
	}
	if p.deps.Batches != nil {
		if err := p.deps.Batches.Create(ctx, row); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("batch_id", batch.ID).Warn("failed to record import batch")
		}
	}

	if p.deps.Events != nil {
		err := p.deps.Events.Publish(ctx, &kafka.DirectoryEvent{
			Type:    kafka.EventBatchCompleted,
			BatchID: batch.ID.String(),
			ActorID: actor.ID,
			Counts: map[string]int{
				"requested":  requested,
				"imported":   row.ImportedCount,
				"duplicates": row.DuplicateCount,
				"skipped":    row.SkippedCount,
				"errors":     row.ErrorCount,
			},
		})
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).Warn("failed to publish batch event")
		}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
