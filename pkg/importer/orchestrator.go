// Package importer turns external place ids into directory entities.
package importer

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectolinq"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/jurisdiction"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/phone"
	"github.com/Ramsey-B/fern/pkg/places"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type Config struct {
	ImportRadiusKm float64
	WidenFactor    float64
	Concurrency    int
	LockTTL        time.Duration
	CountryMarkers []string
	// CountrySuffix is appended to every search query, e.g. "UAE".
	CountrySuffix string
	PhoneRegion   string
}

func DefaultConfig() Config {
	return Config{
		ImportRadiusKm: 10,
		WidenFactor:    1.5,
		Concurrency:    1,
		LockTTL:        2 * time.Minute,
		CountryMarkers: []string{"united arab emirates", "uae"},
		CountrySuffix:  "UAE",
		PhoneRegion:    "AE",
	}
}

// Orchestrator serves the operator import commands.
type Orchestrator struct {
	deps     Deps
	cfg      Config
	pipeline *Pipeline
	logger   ectologger.Logger
}

func NewOrchestrator(deps Deps, cfg Config, logger ectologger.Logger) *Orchestrator {
	return &Orchestrator{
		deps: deps,
		cfg:  cfg,
		pipeline: NewPipeline(deps, PipelineConfig{
			Concurrency:    cfg.Concurrency,
			LockTTL:        cfg.LockTTL,
			CountryMarkers: cfg.CountryMarkers,
		}, logger),
		logger: logger,
	}
}

// Pipeline is shared with recovery so both modes take the same locks.
func (o *Orchestrator) Pipeline() *Pipeline {
	return o.pipeline
}

type SearchRequest struct {
	Category     string
	Locality     string
	Jurisdiction string
	Area         string
	PageToken    string
}

type SearchResult struct {
	ExternalID       string   `json:"place_id"`
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	Rating           *float64 `json:"rating,omitempty"`
	ReviewCount      int      `json:"reviews_count"`
	Latitude         *float64 `json:"lat,omitempty"`
	Longitude        *float64 `json:"lng,omitempty"`
	Types            []string `json:"types"`
	AlreadyImported  bool     `json:"already_imported"`
	JurisdictionCode string   `json:"state_abbreviation,omitempty"`
	IsValidRegion    bool     `json:"is_valid_state"`
}

type SearchResponse struct {
	Results       []SearchResult `json:"results"`
	NextPageToken *string        `json:"next_page_token"`
	TotalFound    int            `json:"total_found"`
	FilteredOut   int            `json:"filtered_out"`
	HasMore       bool           `json:"has_more"`
}

// Query renders the provider text query for a search request.
func (o *Orchestrator) Query(req SearchRequest) string {
	var b strings.Builder
	b.WriteString(req.Category)
	b.WriteString(" in ")
	if req.Area != "" {
		b.WriteString(req.Area)
		b.WriteString(", ")
	}
	b.WriteString(req.Locality)
	if req.Jurisdiction != "" {
		b.WriteString(", ")
		b.WriteString(req.Jurisdiction)
	}
	if o.cfg.CountrySuffix != "" {
		b.WriteString(", ")
		b.WriteString(o.cfg.CountrySuffix)
	}
	return b.String()
}

// Search returns one page of candidates, flagged when already imported and
// filtered to the active jurisdictions.
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	query := o.Query(req)
	ctx, span := tracing.StartSpanWithAttributes(ctx, "Orchestrator.Search", attribute.String("query", query))
	defer span.End()

	page, err := o.deps.Places.SearchText(ctx, query, req.PageToken)
	if err != nil {
		return nil, err
	}

	jurisdictions, err := o.deps.Reference.ListActiveJurisdictions(ctx)
	if err != nil {
		return nil, err
	}
	parser := jurisdiction.NewParser(jurisdictions, o.cfg.CountryMarkers, o.logger)

	ids := ectolinq.Map(page.Results, func(r places.PlaceSummary) string { return r.ExternalID })
	existing, err := o.deps.Entities.ExistingExternalIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{Results: []SearchResult{}, HasMore: page.NextPageToken != ""}
	if page.NextPageToken != "" {
		token := page.NextPageToken
		resp.NextPageToken = &token
	}
	for _, r := range page.Results {
		region := parser.Extract(r.Address)
		if !region.IsValid {
			resp.FilteredOut++
			continue
		}
		result := SearchResult{
			ExternalID:       r.ExternalID,
			Name:             r.Name,
			Address:          r.Address,
			Rating:           r.Rating,
			ReviewCount:      r.RatingCount,
			Types:            r.Types,
			AlreadyImported:  existing[r.ExternalID],
			JurisdictionCode: region.Code,
			IsValidRegion:    region.Code != "",
		}
		if result.Types == nil {
			result.Types = []string{}
		}
		if r.Location != nil {
			lat, lng := r.Location.Latitude, r.Location.Longitude
			result.Latitude, result.Longitude = &lat, &lng
		}
		resp.Results = append(resp.Results, result)
	}
	resp.TotalFound = len(resp.Results)

	if resp.FilteredOut > 0 {
		o.logger.WithContext(ctx).Infof("filtered out %d results outside the active jurisdictions", resp.FilteredOut)
	}
	return resp, nil
}

type ImportRequest struct {
	ExternalIDs []string
	LocalityID  uuid.UUID
	AreaID      *uuid.UUID
	SessionID   *uuid.UUID
}

// Import runs a full-fidelity batch. A missing default locality fails before
// any provider call.
func (o *Orchestrator) Import(ctx context.Context, req ImportRequest) (*BatchResult, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "Orchestrator.Import",
		attribute.Int("batch.size", len(req.ExternalIDs)),
	)

	localityID := req.LocalityID
	batch, err := o.pipeline.NewBatch(ctx, FullProfile(o.cfg.ImportRadiusKm, o.cfg.WidenFactor), BatchOptions{
		DefaultLocalityID: &localityID,
		AreaID:            req.AreaID,
		SessionID:         req.SessionID,
	})
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}

	result, err := o.pipeline.Run(ctx, batch, dedupe(req.ExternalIDs))
	tracing.EndSpan(span, err)
	return result, err
}

// CheckDuplicates finds entities whose phone ends with the same national digits.
func (o *Orchestrator) CheckDuplicates(ctx context.Context, rawPhone string) ([]models.DuplicateCandidate, error) {
	key := phone.Normalize(rawPhone, o.cfg.PhoneRegion).MatchKey
	if key == "" {
		return []models.DuplicateCandidate{}, nil
	}
	candidates, err := o.deps.Entities.FindByPhoneSuffix(ctx, key)
	if err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = []models.DuplicateCandidate{}
	}
	return candidates, nil
}

// dedupe drops blank and repeated ids, keeping first-seen order.
func dedupe(ids []string) []string {
	normalized := ectolinq.Map(ids, func(id string) string { return places.ExtractID(strings.TrimSpace(id)) })
	return ectolinq.Distinct(ectolinq.Filter(normalized, func(id string) bool { return id != "" }))
}
