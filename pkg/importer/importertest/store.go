// Package importertest provides in-memory collaborators for exercising the
// import and recovery pipelines without Postgres, Redis or the provider.
package importertest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/phone"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

// Store implements every repository the pipelines use.
type Store struct {
	mu sync.Mutex

	Jurisdictions []models.Jurisdiction
	Localities    []models.Locality

	Entities []models.DirectoryEntity
	Hours    map[uuid.UUID][]models.OperatingHours
	Reviews  []models.SourceReview
	Photos   []models.Photo
	Log      []models.OperationLogEntry
	Batches  []models.ImportBatch

	// Errors injected per operation name, e.g. "Create" or "ReplaceHours".
	Fail map[string]error
	// ReservedSlugs are reported as taken at insert time only.
	ReservedSlugs map[string]bool

	calls map[string]int
	clock time.Time
}

func NewStore() *Store {
	return &Store{
		Hours:         make(map[uuid.UUID][]models.OperatingHours),
		Fail:          make(map[string]error),
		ReservedSlugs: make(map[string]bool),
		calls:         make(map[string]int),
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Calls returns how often an operation ran.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.Fail[op]
}

func (s *Store) ListActiveJurisdictions(_ context.Context) ([]models.Jurisdiction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListActiveJurisdictions"); err != nil {
		return nil, err
	}
	var out []models.Jurisdiction
	for _, j := range s.Jurisdictions {
		if j.IsActive {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *Store) ListActiveLocalities(_ context.Context) ([]models.Locality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListActiveLocalities"); err != nil {
		return nil, err
	}
	var out []models.Locality
	for _, l := range s.Localities {
		if l.IsActive {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) GetLocality(_ context.Context, id uuid.UUID) (*models.Locality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetLocality"); err != nil {
		return nil, err
	}
	for _, l := range s.Localities {
		if l.ID == id {
			l := l
			return &l, nil
		}
	}
	return nil, repositories.NotFound("locality '%s' does not exist", id)
}

func (s *Store) Create(_ context.Context, entity *models.DirectoryEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Create"); err != nil {
		return err
	}
	if s.ReservedSlugs[entity.Slug] {
		delete(s.ReservedSlugs, entity.Slug)
		return repositories.ErrSlugTaken
	}
	for _, e := range s.Entities {
		if e.ExternalID != nil && entity.ExternalID != nil && *e.ExternalID == *entity.ExternalID {
			return repositories.ErrDuplicateExternalID
		}
		if e.Slug == entity.Slug {
			return repositories.ErrSlugTaken
		}
	}
	s.Entities = append(s.Entities, *entity)
	return nil
}

func (s *Store) ExistsByExternalID(_ context.Context, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ExistsByExternalID"); err != nil {
		return false, err
	}
	return s.findLocked(externalID) != nil, nil
}

func (s *Store) ExistingExternalIDs(_ context.Context, externalIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ExistingExternalIDs"); err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, id := range externalIDs {
		if s.findLocked(id) != nil {
			out[id] = true
		}
	}
	return out, nil
}

func (s *Store) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SlugExists"); err != nil {
		return false, err
	}
	for _, e := range s.Entities {
		if e.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) FindByPhoneSuffix(_ context.Context, suffix string) ([]models.DuplicateCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindByPhoneSuffix"); err != nil {
		return nil, err
	}
	var out []models.DuplicateCandidate
	for _, e := range s.Entities {
		if e.Phone == nil || !strings.Contains(phone.Digits(*e.Phone), suffix) {
			continue
		}
		out = append(out, models.DuplicateCandidate{
			ID:         e.ID,
			Name:       e.Name,
			Phone:      e.Phone,
			Address:    e.Address,
			ExternalID: e.ExternalID,
		})
	}
	return out, nil
}

func (s *Store) DeleteByExternalID(_ context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteByExternalID"); err != nil {
		return err
	}
	e := s.findLocked(externalID)
	if e == nil {
		return repositories.NotFound("entity '%s' does not exist", externalID)
	}
	id := e.ID
	kept := s.Entities[:0]
	for _, e := range s.Entities {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.Entities = kept
	delete(s.Hours, id)

	reviews := s.Reviews[:0]
	for _, r := range s.Reviews {
		if r.EntityID != id {
			reviews = append(reviews, r)
		}
	}
	s.Reviews = reviews

	photos := s.Photos[:0]
	for _, p := range s.Photos {
		if p.EntityID != id {
			photos = append(photos, p)
		}
	}
	s.Photos = photos
	return nil
}

func (s *Store) Counts(_ context.Context) (*models.DirectoryCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Counts"); err != nil {
		return nil, err
	}
	counts := &models.DirectoryCounts{
		Entities:      len(s.Entities),
		SourceReviews: len(s.Reviews),
	}
	for _, h := range s.Hours {
		counts.OperatingHours += len(h)
	}
	return counts, nil
}

func (s *Store) ReplaceHours(_ context.Context, entityID uuid.UUID, hours []models.OperatingHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ReplaceHours"); err != nil {
		return err
	}
	s.Hours[entityID] = hours
	return nil
}

func (s *Store) InsertReviews(_ context.Context, reviews []models.SourceReview) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertReviews"); err != nil {
		return 0, err
	}
	inserted := 0
	for _, r := range reviews {
		dup := false
		for _, existing := range s.Reviews {
			if existing.SourceReviewID == r.SourceReviewID {
				dup = true
				break
			}
		}
		if !dup {
			s.Reviews = append(s.Reviews, r)
			inserted++
		}
	}
	return inserted, nil
}

func (s *Store) InsertPhotos(_ context.Context, photos []models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertPhotos"); err != nil {
		return err
	}
	s.Photos = append(s.Photos, photos...)
	return nil
}

func (s *Store) Append(_ context.Context, entry *models.OperationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Append"); err != nil {
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		s.clock = s.clock.Add(time.Second)
		entry.CreatedAt = s.clock
	}
	s.Log = append(s.Log, *entry)
	return nil
}

// AppendImport seeds a log entry for externalID.
func (s *Store) AppendImport(externalID string) {
	entry := &models.OperationLogEntry{
		Action:     models.ActionDirectoryImport,
		EntityType: models.EntityTypeDirectory,
	}
	entry.NewValues.Data = map[string]any{"external_id": externalID}
	_ = s.Append(context.Background(), entry)
}

func (s *Store) ListPage(_ context.Context, entityType, action string, after *repositories.LogCursor, limit int) ([]models.OperationLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListPage"); err != nil {
		return nil, err
	}

	sorted := make([]models.OperationLogEntry, 0, len(s.Log))
	for _, e := range s.Log {
		if e.EntityType == entityType && e.Action == action {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID.String() < sorted[j].ID.String()
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var out []models.OperationLogEntry
	for _, e := range sorted {
		if after != nil {
			if e.CreatedAt.Before(after.CreatedAt) {
				continue
			}
			if e.CreatedAt.Equal(after.CreatedAt) && e.ID.String() <= after.ID.String() {
				continue
			}
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// batchRepo adapts Store to ImportBatchRepo; its Create collides with the entity Create.
type batchRepo struct {
	s *Store
}

// BatchRepo returns the import batch view of the store.
func (s *Store) BatchRepo() repositories.ImportBatchRepo {
	return batchRepo{s: s}
}

func (b batchRepo) Create(_ context.Context, batch *models.ImportBatch) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if err := b.s.enter("CreateBatch"); err != nil {
		return err
	}
	b.s.Batches = append(b.s.Batches, *batch)
	return nil
}

// Entity returns a copy of the stored entity for externalID.
func (s *Store) Entity(externalID string) (models.DirectoryEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.findLocked(externalID); e != nil {
		return *e, true
	}
	return models.DirectoryEntity{}, false
}

func (s *Store) findLocked(externalID string) *models.DirectoryEntity {
	for i := range s.Entities {
		if id := s.Entities[i].ExternalID; id != nil && *id == externalID {
			return &s.Entities[i]
		}
	}
	return nil
}

// ErrInjected is a convenient failure for Fail entries.
var ErrInjected = errors.New("injected failure")
