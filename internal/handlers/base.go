package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/places"
)

// ParseOptionalUUID parses an optional UUID body field already checked by the validator.
func ParseOptionalUUID(value *string) *uuid.UUID {
	if value == nil || *value == "" {
		return nil
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return nil
	}
	return &id
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// providerError renders provider failures for the operator. Configuration
// errors carry the remediation; other provider errors are a bad gateway.
func providerError(err error) error {
	var cfgErr *places.ConfigurationError
	if errors.As(err, &cfgErr) {
		return httperror.NewHTTPError(http.StatusBadRequest, cfgErr.Message).
			AddMetaValue(middleware.MetaRequiresSetup, cfgErr.RequiresSetup).
			AddMetaValue(middleware.MetaSolution, cfgErr.Remediation)
	}

	var provErr *places.ProviderError
	if errors.As(err, &provErr) {
		return httperror.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("Places API error: %s - %s", provErr.Status, provErr.Message))
	}
	return err
}
