package recovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/importer"
	"github.com/Ramsey-B/fern/pkg/importer/importertest"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/places"
)

var (
	marinaID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	majazID  = uuid.MustParse("00000000-0000-0000-0000-000000000003")
)

func fptr(v float64) *float64 { return &v }

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type harness struct {
	store    *importertest.Store
	provider *importertest.Provider
	photos   *importertest.PhotoStore
	imports  *importer.Orchestrator
	recovery *Orchestrator
}

func newHarness(cfg Config, ps ...*places.Place) *harness {
	store := importertest.NewStore()
	store.Jurisdictions = []models.Jurisdiction{
		{ID: uuid.New(), Name: "Dubai", Code: "DU", IsActive: true},
		{ID: uuid.New(), Name: "Sharjah", Code: "SH", IsActive: true},
		{ID: uuid.New(), Name: "Fujairah", Code: "FU", IsActive: true},
	}
	store.Localities = []models.Locality{
		{ID: marinaID, Name: "Dubai Marina", Latitude: fptr(25.080), Longitude: fptr(55.140), JurisdictionCode: "DU", IsActive: true},
		{ID: majazID, Name: "Al Majaz", Latitude: fptr(25.325), Longitude: fptr(55.385), JurisdictionCode: "SH", IsActive: true},
	}

	h := &harness{
		store:    store,
		provider: importertest.NewProvider(ps...),
		photos:   importertest.NewPhotoStore(),
	}
	deps := importer.Deps{
		Reference:  store,
		Entities:   store,
		Enrichment: store,
		OpLog:      store,
		Batches:    store.BatchRepo(),
		Places:     h.provider,
		Photos:     h.photos,
	}
	h.imports = importer.NewOrchestrator(deps, importer.DefaultConfig(), testLogger())
	h.recovery = NewOrchestrator(store, store, h.imports.Pipeline(), cfg, testLogger())
	return h
}

func place(id, name, address string, lat, lng float64) *places.Place {
	return &places.Place{
		ExternalID: id,
		Name:       name,
		Address:    address,
		Location:   &places.LatLng{Latitude: lat, Longitude: lng},
		Photos: []places.PhotoRef{
			{Name: "places/" + id + "/photos/a"},
			{Name: "places/" + id + "/photos/b"},
		},
		Reviews: []places.Review{{Name: "r1", Rating: 5, Text: "Lovely"}},
	}
}

func TestListRecoverableIds(t *testing.T) {
	h := newHarness(Config{LogPageSize: 2})
	for _, id := range []string{"a", "b", "a", "c", "d", "b", "e"} {
		h.store.AppendImport(id)
	}
	for _, id := range []string{"b", "d"} {
		id := id
		h.store.Entities = append(h.store.Entities, models.DirectoryEntity{ID: uuid.New(), ExternalID: &id, Slug: id})
	}

	first, err := h.recovery.ListRecoverableIds(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, first.Total)
	assert.Equal(t, 2, first.AlreadyRestored)
	assert.Equal(t, []string{"a", "c", "e"}, first.Remaining)
	// 7 rows at page size 2 is four pages, the last one short
	assert.Equal(t, 4, h.store.Calls("ListPage"))

	second, err := h.recovery.ListRecoverableIds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListRecoverableIdsExactPageMultiple(t *testing.T) {
	h := newHarness(Config{LogPageSize: 2})
	for _, id := range []string{"a", "b", "c", "d"} {
		h.store.AppendImport(id)
	}

	ids, err := h.recovery.ListRecoverableIds(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids.Remaining)
	assert.Equal(t, 3, h.store.Calls("ListPage"), "an empty page ends the scan")
}

func TestListRecoverableIdsEmptyLog(t *testing.T) {
	h := newHarness(DefaultConfig())

	ids, err := h.recovery.ListRecoverableIds(context.Background())
	require.NoError(t, err)

	assert.Zero(t, ids.Total)
	assert.NotNil(t, ids.Remaining)
	assert.Empty(t, ids.Remaining)
}

func TestImportDeleteRecoverRoundTrip(t *testing.T) {
	marina := place("p1", "Smile Dental", "Marina Walk, Dubai, United Arab Emirates", 25.081, 55.141)
	majaz := place("p2", "Majaz Clinic", "Corniche St, Sharjah, United Arab Emirates", 25.326, 55.386)
	h := newHarness(DefaultConfig(), marina, majaz)
	ctx := context.Background()

	imported, err := h.imports.Import(ctx, importer.ImportRequest{ExternalIDs: []string{"p1", "p2"}, LocalityID: marinaID})
	require.NoError(t, err)
	require.Len(t, imported.Imported, 2)
	before, _ := h.store.Entity("p1")

	require.NoError(t, h.store.DeleteByExternalID(ctx, "p1"))

	ids, err := h.recovery.ListRecoverableIds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids.Remaining)
	assert.Equal(t, 1, ids.AlreadyRestored)

	h.provider.PhotoWidths = nil
	result, err := h.recovery.RecoverBatch(ctx, []string{"p1", "p2"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Errors)
	assert.Equal(t, []string{"p1"}, result.ImportedIDs)

	after, ok := h.store.Entity("p1")
	require.True(t, ok)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, before.LocalityID, after.LocalityID)
	assert.Equal(t, before.Slug, after.Slug)
	assert.Equal(t, true, after.StructuredMetadata.Data["recovery_mode"])
	assert.Equal(t, []int{1600}, h.provider.PhotoWidths, "recovery keeps the cover photo only")
	assert.Equal(t, places.RecoveryFieldMask, h.provider.Masks()[len(h.provider.Masks())-1])

	again, err := h.recovery.RecoverBatch(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Zero(t, again.Imported)
	assert.Equal(t, 2, again.Skipped)
}

func TestRecoverBatchOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		place        *places.Place
		wantImported int
		wantSkipped  []string
		wantError    string
		wantLocality uuid.UUID
	}{
		{
			name:         "nearby locality",
			place:        place("p1", "Near", "Street, Dubai, United Arab Emirates", 25.09, 55.15),
			wantImported: 1,
			wantLocality: marinaID,
		},
		{
			name:         "falls back to first locality of jurisdiction",
			place:        place("p1", "Far", "Desert Rd, Sharjah, United Arab Emirates", 24.0, 52.0),
			wantImported: 1,
			wantLocality: majazID,
		},
		{
			name:      "jurisdiction without localities",
			place:     place("p1", "East", "Beach Rd, Fujairah, United Arab Emirates", 19.0, 60.0),
			wantError: "East: no locality found for jurisdiction FU",
		},
		{
			name:        "outside active jurisdictions",
			place:       place("p1", "Abroad", "Main St - Downtown - Springfield - Country X", 40.0, -74.0),
			wantSkipped: []string{"p1 (unknown)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(DefaultConfig(), tt.place)

			result, err := h.recovery.RecoverBatch(context.Background(), []string{"p1"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantImported, result.Imported)
			if tt.wantSkipped != nil {
				assert.Equal(t, tt.wantSkipped, result.SkippedIDs)
			}
			if tt.wantError != "" {
				require.Len(t, result.ErrorDetails, 1)
				assert.Equal(t, tt.wantError, result.ErrorDetails[0])
			}
			if tt.wantImported > 0 {
				entity, ok := h.store.Entity("p1")
				require.True(t, ok)
				assert.Equal(t, tt.wantLocality, entity.LocalityID)
			}
		})
	}
}

func TestRecoverBatchProviderNotFound(t *testing.T) {
	h := newHarness(DefaultConfig())

	result, err := h.recovery.RecoverBatch(context.Background(), []string{"gone"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, []string{"gone: logged place no longer exists at the provider"}, result.ErrorDetails)
}

func TestRecoverBatchCapsErrorDetails(t *testing.T) {
	h := newHarness(DefaultConfig())
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("missing-%d", i)
	}

	result, err := h.recovery.RecoverBatch(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, 25, result.Errors)
	assert.Len(t, result.ErrorDetails, MaxErrorDetails)
}

func TestRecoverBatchEmpty(t *testing.T) {
	h := newHarness(DefaultConfig())

	result, err := h.recovery.RecoverBatch(context.Background(), nil)
	require.NoError(t, err)

	assert.Zero(t, result.Imported)
	assert.Zero(t, h.store.Calls("ListActiveJurisdictions"))
}

func TestStatus(t *testing.T) {
	h := newHarness(DefaultConfig(), place("p1", "Smile", "Marina Walk, Dubai, United Arab Emirates", 25.081, 55.141))
	_, err := h.recovery.RecoverBatch(context.Background(), []string{"p1"})
	require.NoError(t, err)

	counts, err := h.recovery.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Entities)
	assert.Equal(t, 7, counts.OperatingHours)
	assert.Equal(t, 1, counts.SourceReviews)
}

func TestRunner(t *testing.T) {
	ps := []*places.Place{
		place("p1", "One", "A St, Dubai, United Arab Emirates", 25.081, 55.141),
		place("p2", "Two", "B St, Dubai, United Arab Emirates", 25.082, 55.142),
		place("p3", "Three", "C St, Dubai, United Arab Emirates", 25.083, 55.143),
	}
	h := newHarness(DefaultConfig(), ps...)
	for _, p := range ps {
		h.store.AppendImport(p.ExternalID)
	}

	var pauses []time.Duration
	runner := NewRunner(h.recovery, testLogger())
	runner.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	var reports []Progress
	progress, err := runner.Run(context.Background(), RunOptions{
		BatchSize:  2,
		Pause:      time.Second,
		OnProgress: func(p Progress) { reports = append(reports, p) },
	})
	require.NoError(t, err)

	assert.Equal(t, 2, progress.Batch)
	assert.Equal(t, 3, progress.Processed)
	assert.Equal(t, 3, progress.Imported)
	assert.Equal(t, []time.Duration{time.Second}, pauses)
	require.Len(t, reports, 2)
	assert.Equal(t, 2, reports[0].Processed)

	// a second run resumes from the log and finds nothing left
	progress, err = runner.Run(context.Background(), RunOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Zero(t, progress.Total)
}

func TestRunnerDryRun(t *testing.T) {
	h := newHarness(DefaultConfig(), place("p1", "One", "A St, Dubai, United Arab Emirates", 25.081, 55.141))
	h.store.AppendImport("p1")

	progress, err := NewRunner(h.recovery, testLogger()).Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, progress.Total)
	assert.Zero(t, progress.Imported)
	assert.Empty(t, h.provider.DetailCalls)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	h := newHarness(DefaultConfig(), place("p1", "One", "A St, Dubai, United Arab Emirates", 25.081, 55.141))
	h.store.AppendImport("p1")
	h.store.AppendImport("p2")

	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(h.recovery, testLogger())
	runner.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	progress, err := runner.Run(ctx, RunOptions{BatchSize: 1, Pause: time.Millisecond})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, progress.Batch)
}
