package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/recovery"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// RecoveryService is implemented by recovery.Orchestrator.
type RecoveryService interface {
	ListRecoverableIds(ctx context.Context) (*recovery.RecoverableIDs, error)
	RecoverBatch(ctx context.Context, externalIDs []string) (*recovery.BatchResult, error)
	Status(ctx context.Context) (*models.DirectoryCounts, error)
}

type RecoveryHandler struct {
	service RecoveryService
}

func NewRecoveryHandler(service RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{service: service}
}

type RecoverBatchRequest struct {
	ExternalIDs []string `json:"external_ids" validate:"required,min=1,max=100,dive,required,max=500"`
}

type recoverableResponse struct {
	Success         bool     `json:"success"`
	Total           int      `json:"total_place_ids"`
	AlreadyRestored int      `json:"already_restored"`
	Remaining       int      `json:"remaining"`
	PlaceIDs        []string `json:"place_ids"`
}

type recoverBatchResponse struct {
	Success bool `json:"success"`
	*recovery.BatchResult
}

type statusResponse struct {
	Success bool                    `json:"success"`
	Counts  *models.DirectoryCounts `json:"counts"`
}

// RegisterRoutes registers the recovery routes
func (h *RecoveryHandler) RegisterRoutes(g *echo.Group) {
	r := g.Group("/recovery")
	r.GET("/ids", h.ListRecoverableIds)
	r.POST("/batch", h.RecoverBatch)
	r.GET("/status", h.Status)
}

// ListRecoverableIds handles GET /recovery/ids
func (h *RecoveryHandler) ListRecoverableIds(c echo.Context) error {
	ids, err := h.service.ListRecoverableIds(c.Request().Context())
	if err != nil {
		return err
	}

	return SuccessResponse(c, recoverableResponse{
		Success:         true,
		Total:           ids.Total,
		AlreadyRestored: ids.AlreadyRestored,
		Remaining:       len(ids.Remaining),
		PlaceIDs:        ids.Remaining,
	})
}

// RecoverBatch handles POST /recovery/batch
func (h *RecoveryHandler) RecoverBatch(c echo.Context) error {
	req, err := validation.BindRequest[RecoverBatchRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.RecoverBatch(c.Request().Context(), req.ExternalIDs)
	if err != nil {
		return providerError(err)
	}

	return SuccessResponse(c, recoverBatchResponse{Success: true, BatchResult: result})
}

// Status handles GET /recovery/status
func (h *RecoveryHandler) Status(c echo.Context) error {
	counts, err := h.service.Status(c.Request().Context())
	if err != nil {
		return err
	}

	return SuccessResponse(c, statusResponse{Success: true, Counts: counts})
}
