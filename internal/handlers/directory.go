package handlers

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectolinq"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/importer"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// DirectoryService is implemented by importer.Orchestrator.
type DirectoryService interface {
	Search(ctx context.Context, req importer.SearchRequest) (*importer.SearchResponse, error)
	Import(ctx context.Context, req importer.ImportRequest) (*importer.BatchResult, error)
	CheckDuplicates(ctx context.Context, phone string) ([]models.DuplicateCandidate, error)
}

// DirectoryHandler serves the operator import commands.
type DirectoryHandler struct {
	service DirectoryService
	logger  ectologger.Logger
}

func NewDirectoryHandler(service DirectoryService, logger ectologger.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		service: service,
		logger:  logger,
	}
}

type SearchRequest struct {
	Category     string `json:"category" validate:"required,max=100"`
	Locality     string `json:"locality" validate:"required,max=100"`
	Jurisdiction string `json:"jurisdiction" validate:"max=100"`
	Area         string `json:"area" validate:"max=100"`
	PageToken    string `json:"page_token" validate:"max=2000"`
}

type ImportRequest struct {
	ExternalIDs []string `json:"external_ids" validate:"required,min=1,max=50,dive,required,max=500"`
	LocalityID  string   `json:"locality_id" validate:"required,uuid"`
	AreaID      *string  `json:"area_id" validate:"omitempty,uuid"`
	SessionID   *string  `json:"session_id" validate:"omitempty,uuid"`
}

type CheckDuplicatesRequest struct {
	Name    string `json:"name" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Address string `json:"address" validate:"max=500"`
}

type searchResponse struct {
	Success bool `json:"success"`
	*importer.SearchResponse
}

type importResponse struct {
	Success           bool                    `json:"success"`
	BatchID           uuid.UUID               `json:"batch_id"`
	Imported          int                     `json:"imported"`
	Duplicates        int                     `json:"duplicates"`
	ImportedPlaceIDs  []string                `json:"imported_place_ids"`
	DuplicatePlaceIDs []string                `json:"duplicate_place_ids"`
	Items             []importer.ImportedItem `json:"items"`
	Errors            []string                `json:"errors"`
	Failures          []importer.ItemError    `json:"failures"`
	Message           string                  `json:"message"`
}

type duplicatesResponse struct {
	Success    bool                        `json:"success"`
	Duplicates []models.DuplicateCandidate `json:"duplicates"`
}

// RegisterRoutes registers the directory routes
func (h *DirectoryHandler) RegisterRoutes(g *echo.Group) {
	directory := g.Group("/directory")
	directory.POST("/search", h.Search)
	directory.POST("/import", h.Import)
	directory.POST("/check-duplicates", h.CheckDuplicates)
}

// Search handles POST /directory/search
func (h *DirectoryHandler) Search(c echo.Context) error {
	req, err := validation.BindRequest[SearchRequest](c)
	if err != nil {
		return err
	}

	resp, err := h.service.Search(c.Request().Context(), importer.SearchRequest{
		Category:     req.Category,
		Locality:     req.Locality,
		Jurisdiction: req.Jurisdiction,
		Area:         req.Area,
		PageToken:    req.PageToken,
	})
	if err != nil {
		return providerError(err)
	}

	return SuccessResponse(c, searchResponse{Success: true, SearchResponse: resp})
}

// Import handles POST /directory/import
func (h *DirectoryHandler) Import(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := validation.BindRequest[ImportRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.Import(ctx, importer.ImportRequest{
		ExternalIDs: req.ExternalIDs,
		LocalityID:  uuid.MustParse(req.LocalityID),
		AreaID:      ParseOptionalUUID(req.AreaID),
		SessionID:   ParseOptionalUUID(req.SessionID),
	})
	if err != nil {
		if result != nil {
			h.logger.WithContext(ctx).WithError(err).Warnf("import aborted after %d items", len(result.Imported))
		}
		return providerError(err)
	}

	resp := importResponse{
		Success:           true,
		BatchID:           result.BatchID,
		Imported:          len(result.Imported),
		Duplicates:        len(result.Duplicates),
		ImportedPlaceIDs:  append([]string{}, ectolinq.Map(result.Imported, importedID)...),
		DuplicatePlaceIDs: append([]string{}, result.Duplicates...),
		Items:             append([]importer.ImportedItem{}, result.Imported...),
		Errors:            append([]string{}, ectolinq.Map(result.Errors, errorMessage)...),
		Failures:          append([]importer.ItemError{}, result.Errors...),
	}
	resp.Message = fmt.Sprintf("Imported %d, %d duplicates, %d errors", resp.Imported, resp.Duplicates, len(resp.Errors))

	return SuccessResponse(c, resp)
}

// CheckDuplicates handles POST /directory/check-duplicates
func (h *DirectoryHandler) CheckDuplicates(c echo.Context) error {
	req, err := validation.BindRequest[CheckDuplicatesRequest](c)
	if err != nil {
		return err
	}

	duplicates, err := h.service.CheckDuplicates(c.Request().Context(), req.Phone)
	if err != nil {
		return err
	}

	return SuccessResponse(c, duplicatesResponse{Success: true, Duplicates: duplicates})
}

func importedID(item importer.ImportedItem) string { return item.ExternalID }

func errorMessage(e importer.ItemError) string { return e.Message }
