package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/importer"
	"github.com/Ramsey-B/fern/pkg/importer/importertest"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/places"
	"github.com/Ramsey-B/fern/pkg/recovery"
)

var localityID = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")

func fptr(v float64) *float64 { return &v }

type testAPI struct {
	echo     *echo.Echo
	store    *importertest.Store
	provider *importertest.Provider
}

func newTestAPI(ps ...*places.Place) *testAPI {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	store := importertest.NewStore()
	store.Jurisdictions = []models.Jurisdiction{{ID: uuid.New(), Name: "Dubai", Code: "DU", IsActive: true}}
	store.Localities = []models.Locality{
		{ID: localityID, Name: "Deira", Latitude: fptr(25.27), Longitude: fptr(55.30), JurisdictionCode: "DU", IsActive: true},
	}
	provider := importertest.NewProvider(ps...)

	imports := importer.NewOrchestrator(importer.Deps{
		Reference:  store,
		Entities:   store,
		Enrichment: store,
		OpLog:      store,
		Batches:    store.BatchRepo(),
		Places:     provider,
		Photos:     importertest.NewPhotoStore(),
	}, importer.DefaultConfig(), logger)
	recoveries := recovery.NewOrchestrator(store, store, imports.Pipeline(), recovery.DefaultConfig(), logger)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context(true))
	api := e.Group("/api/v1")
	NewDirectoryHandler(imports, logger).RegisterRoutes(api)
	NewRecoveryHandler(recoveries).RegisterRoutes(api)

	return &testAPI{echo: e, store: store, provider: provider}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderUserID, "op-1")
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func deiraPlace(id string) *places.Place {
	return &places.Place{
		ExternalID: id,
		Name:       "Clinic " + id,
		Address:    "Al Rigga St, Deira, Dubai, United Arab Emirates",
		Location:   &places.LatLng{Latitude: 25.265, Longitude: 55.31},
	}
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []any
	}{
		{name: "missing fields", body: `{}`, want: []any{"category is required", "locality is required"}},
		{name: "too long", body: fmt.Sprintf(`{"category":"%s","locality":"Deira"}`, strings.Repeat("a", 101)), want: []any{"category must be at most 100 characters"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI()

			code, body := a.do(t, http.MethodPost, "/api/v1/directory/search", tt.body)

			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["errors"])
			assert.Empty(t, a.provider.Queries, "validation fails before any provider call")
		})
	}
}

func TestSearch(t *testing.T) {
	a := newTestAPI()
	a.provider.SearchPages["tok"] = &places.SearchPage{
		Results: []places.PlaceSummary{{ExternalID: "p1", Name: "One", Address: "Deira, Dubai, United Arab Emirates"}},
	}

	code, body := a.do(t, http.MethodPost, "/api/v1/directory/search", `{"category":"dentist","locality":"Deira","page_token":"tok"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["has_more"])
	assert.Nil(t, body["next_page_token"])
	require.Len(t, body["results"], 1)
	assert.Equal(t, "p1", body["results"].([]any)[0].(map[string]any)["place_id"])
}

func TestSearchConfigurationError(t *testing.T) {
	a := newTestAPI()
	a.provider.SearchErr = &places.ConfigurationError{Message: "API key configuration error", Remediation: "enable it", RequiresSetup: true}

	code, body := a.do(t, http.MethodPost, "/api/v1/directory/search", `{"category":"dentist","locality":"Deira"}`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, true, body["requires_setup"])
	assert.Equal(t, "enable it", body["solution"])
	assert.Equal(t, "API key configuration error", body["error"])
}

func TestImportValidation(t *testing.T) {
	ids := make([]string, 51)
	for i := range ids {
		ids[i] = fmt.Sprintf(`"p%d"`, i)
	}

	tests := []struct {
		name string
		body string
		want []any
	}{
		{
			name: "too many ids",
			body: fmt.Sprintf(`{"external_ids":[%s],"locality_id":"%s"}`, strings.Join(ids, ","), localityID),
			want: []any{"external_ids must contain at most 50 items"},
		},
		{
			name: "bad uuids",
			body: `{"external_ids":["p1"],"locality_id":"nope","area_id":"also-nope"}`,
			want: []any{"locality_id must be a valid UUID", "area_id must be a valid UUID"},
		},
		{
			name: "empty ids",
			body: fmt.Sprintf(`{"external_ids":[],"locality_id":"%s"}`, localityID),
			want: []any{"external_ids must contain at least 1 items"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI()

			code, body := a.do(t, http.MethodPost, "/api/v1/directory/import", tt.body)

			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.want, body["errors"])
			assert.Empty(t, a.provider.DetailCalls)
		})
	}
}

func TestImport(t *testing.T) {
	a := newTestAPI(deiraPlace("p1"))
	a.provider.Errors["p2"] = &places.ProviderError{StatusCode: 500, Status: "INTERNAL", Message: "boom"}

	code, body := a.do(t, http.MethodPost, "/api/v1/directory/import",
		fmt.Sprintf(`{"external_ids":["p1","p2"],"locality_id":"%s"}`, localityID))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["imported"])
	assert.Equal(t, []any{"p1"}, body["imported_place_ids"])
	assert.Equal(t, []any{"Failed to fetch p2: boom"}, body["errors"])

	require.Len(t, a.store.Log, 1)
	require.NotNil(t, a.store.Log[0].ActorID)
	assert.Equal(t, "op-1", *a.store.Log[0].ActorID)
}

func TestImportUnknownLocality(t *testing.T) {
	a := newTestAPI(deiraPlace("p1"))

	code, body := a.do(t, http.MethodPost, "/api/v1/directory/import",
		fmt.Sprintf(`{"external_ids":["p1"],"locality_id":"%s"}`, uuid.New()))

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
	assert.Empty(t, a.provider.DetailCalls)
}

func TestCheckDuplicates(t *testing.T) {
	a := newTestAPI()

	code, body := a.do(t, http.MethodPost, "/api/v1/directory/check-duplicates", `{"name":"Smile"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["duplicates"])
}

func TestRecoveryRoutes(t *testing.T) {
	a := newTestAPI(deiraPlace("p1"))
	a.store.AppendImport("p1")

	code, body := a.do(t, http.MethodGet, "/api/v1/recovery/ids", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["remaining"])
	assert.Equal(t, []any{"p1"}, body["place_ids"])

	code, body = a.do(t, http.MethodPost, "/api/v1/recovery/batch", `{"external_ids":["p1"]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["imported"])
	assert.Equal(t, []any{"p1"}, body["imported_ids"])

	code, body = a.do(t, http.MethodGet, "/api/v1/recovery/status", "")
	assert.Equal(t, http.StatusOK, code)
	counts := body["counts"].(map[string]any)
	assert.Equal(t, float64(1), counts["entities"])
	assert.Equal(t, float64(7), counts["operating_hours"])
}

func TestRecoverBatchValidation(t *testing.T) {
	a := newTestAPI()

	code, body := a.do(t, http.MethodPost, "/api/v1/recovery/batch", `{"external_ids":[""]}`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []any{"external_ids[0] is required"}, body["errors"])
}
