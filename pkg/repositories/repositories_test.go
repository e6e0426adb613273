package repositories_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

// getTestDB starts a throwaway PostgreSQL container and applies the migrations.
func getTestDB(t *testing.T) database.DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "fern",
			"POSTGRES_PASSWORD": "fern",
			"POSTGRES_DB":       "fern",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	logger := getTestLogger()
	db, err := database.Connect(ctx, database.ConnectionConfig{
		Host:     host,
		Port:     port.Port(),
		User:     "fern",
		Password: "fern",
		Name:     "fern",
		SSLMode:  "disable",
	}, logger)
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: "../../db/pg",
	})
	require.NoError(t, migrations.MigratePostgres(db, "fern"))

	return db
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err), "expected 404, got: %d", httperror.GetStatusCode(err))
}

func seedLocality(t *testing.T, db database.DB, name, code string, lat, lng float64) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var jurisdictionID uuid.UUID
	err := db.QueryRowContext(ctx,
		`INSERT INTO jurisdictions (name, code) VALUES ($1, $2)
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name RETURNING id`,
		name+" Region", code).Scan(&jurisdictionID)
	require.NoError(t, err)

	var localityID uuid.UUID
	err = db.QueryRowContext(ctx,
		`INSERT INTO localities (name, latitude, longitude, jurisdiction_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		name, lat, lng, jurisdictionID).Scan(&localityID)
	require.NoError(t, err)
	return localityID
}

func newEntity(localityID uuid.UUID, externalID, slug string) *models.DirectoryEntity {
	phone := "+971 4 123 4567"
	return &models.DirectoryEntity{
		ExternalID:         &externalID,
		Name:               "Smile Dental " + externalID,
		Slug:               slug,
		Phone:              &phone,
		LocalityID:         localityID,
		Source:             models.SourceProvider,
		IsActive:           true,
		ClaimStatus:        models.ClaimStatusUnclaimed,
		VerificationStatus: models.VerificationStatusPending,
	}
}

func TestDirectoryRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	ctx := context.Background()

	reference := repositories.NewReferenceRepository(db, logger)
	entities := repositories.NewEntityRepository(db, logger, 2)
	enrichment := repositories.NewEnrichmentRepository(db, logger)
	opLog := repositories.NewOperationLogRepository(db, logger)
	batches := repositories.NewImportBatchRepository(db, logger)
	settings := repositories.NewSettingsRepository(db, logger)

	localityID := seedLocality(t, db, "Dubai", "DU", 25.2048, 55.2708)

	t.Run("reference data", func(t *testing.T) {
		localities, err := reference.ListActiveLocalities(ctx)
		require.NoError(t, err)
		require.Len(t, localities, 1)
		assert.Equal(t, "DU", localities[0].JurisdictionCode)
		assert.True(t, localities[0].HasCoordinates())

		jurisdictions, err := reference.ListActiveJurisdictions(ctx)
		require.NoError(t, err)
		require.Len(t, jurisdictions, 1)

		_, err = reference.GetLocality(ctx, uuid.New())
		assertNotFound(t, err)
	})

	t.Run("create enforces unique external id and slug", func(t *testing.T) {
		entity := newEntity(localityID, "place-1", "smile-dental")
		require.NoError(t, entities.Create(ctx, entity))
		assert.False(t, entity.CreatedAt.IsZero())

		err := entities.Create(ctx, newEntity(localityID, "place-1", "other-slug"))
		assert.ErrorIs(t, err, repositories.ErrDuplicateExternalID)

		err = entities.Create(ctx, newEntity(localityID, "place-2", "smile-dental"))
		assert.ErrorIs(t, err, repositories.ErrSlugTaken)

		taken, err := entities.SlugExists(ctx, "smile-dental")
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("existence check spans chunks", func(t *testing.T) {
		require.NoError(t, entities.Create(ctx, newEntity(localityID, "place-3", "smile-dental-3")))
		require.NoError(t, entities.Create(ctx, newEntity(localityID, "place-4", "smile-dental-4")))

		existing, err := entities.ExistingExternalIDs(ctx, []string{"place-1", "missing-a", "place-3", "missing-b", "place-4"})
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"place-1": true, "place-3": true, "place-4": true}, existing)
	})

	t.Run("enrichment writes", func(t *testing.T) {
		entity := newEntity(localityID, "place-5", "smile-dental-5")
		require.NoError(t, entities.Create(ctx, entity))

		hours := make([]models.OperatingHours, 7)
		for day := range hours {
			hours[day] = models.OperatingHours{DayOfWeek: day, IsClosed: true}
		}
		require.NoError(t, enrichment.ReplaceHours(ctx, entity.ID, hours))
		require.NoError(t, enrichment.ReplaceHours(ctx, entity.ID, hours))
		assert.Error(t, enrichment.ReplaceHours(ctx, entity.ID, hours[:3]))

		review := models.SourceReview{
			EntityID:       entity.ID,
			AuthorName:     "Anonymous",
			Rating:         5,
			SourceReviewID: "gmb_place-5_r1",
			SyncedAt:       time.Now(),
		}
		inserted, err := enrichment.InsertReviews(ctx, []models.SourceReview{review})
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)

		inserted, err = enrichment.InsertReviews(ctx, []models.SourceReview{review})
		require.NoError(t, err)
		assert.Equal(t, 0, inserted)

		require.NoError(t, enrichment.InsertPhotos(ctx, []models.Photo{
			{EntityID: entity.ID, URL: "https://cdn/x.jpg", DisplayOrder: 0, Caption: "Main Photo"},
		}))

		counts, err := entities.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, counts.OperatingHours)
		assert.Equal(t, 1, counts.SourceReviews)
	})

	t.Run("phone suffix search", func(t *testing.T) {
		candidates, err := entities.FindByPhoneSuffix(ctx, "41234567")
		require.NoError(t, err)
		assert.NotEmpty(t, candidates)
	})

	t.Run("operation log pages in order", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, opLog.Append(ctx, &models.OperationLogEntry{
				Action:     models.ActionDirectoryImport,
				EntityType: models.EntityTypeDirectory,
				NewValues:  database.NewJSONB(map[string]any{"external_id": fmt.Sprintf("log-%d", i)}),
			}))
		}

		var seen []string
		var cursor *repositories.LogCursor
		for {
			page, err := opLog.ListPage(ctx, models.EntityTypeDirectory, models.ActionDirectoryImport, cursor, 2)
			require.NoError(t, err)
			for _, entry := range page {
				seen = append(seen, entry.ExternalID())
			}
			if len(page) < 2 {
				break
			}
			last := page[len(page)-1]
			cursor = &repositories.LogCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
		assert.Len(t, seen, 5)
	})

	t.Run("delete and batch bookkeeping", func(t *testing.T) {
		require.NoError(t, entities.DeleteByExternalID(ctx, "place-3"))
		assertNotFound(t, entities.DeleteByExternalID(ctx, "place-3"))

		now := time.Now()
		require.NoError(t, batches.Create(ctx, &models.ImportBatch{
			Kind:           models.BatchKindImport,
			RequestedCount: 2,
			ImportedCount:  1,
			StartedAt:      now,
			CompletedAt:    &now,
		}))

		_, err := settings.Get(ctx, "places_provider")
		assertNotFound(t, err)
	})
}
