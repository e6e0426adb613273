package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/validation"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context(true))
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestErrorEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		want       ErrorResponse
	}{
		{
			name:       "plain error hides details",
			err:        errors.New("db exploded"),
			wantStatus: http.StatusInternalServerError,
			want:       ErrorResponse{Error: "Internal Server Error"},
		},
		{
			name:       "http error",
			err:        httperror.NewHTTPError(http.StatusNotFound, "locality 'x' does not exist"),
			wantStatus: http.StatusNotFound,
			want:       ErrorResponse{Error: "locality 'x' does not exist"},
		},
		{
			name: "validation violations",
			err: httperror.NewHTTPError(http.StatusBadRequest, "validation failed").
				AddMetaValue(validation.MetaViolations, []string{"category is required"}),
			wantStatus: http.StatusBadRequest,
			want:       ErrorResponse{Error: "validation failed", Errors: []string{"category is required"}},
		},
		{
			name: "configuration",
			err: httperror.NewHTTPError(http.StatusBadRequest, "API key configuration error").
				AddMetaValue(MetaRequiresSetup, true).
				AddMetaValue(MetaSolution, "enable the API"),
			wantStatus: http.StatusBadRequest,
			want:       ErrorResponse{Error: "API key configuration error", RequiresSetup: true, Solution: "enable the API"},
		},
		{
			name:       "echo error",
			err:        echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"),
			wantStatus: http.StatusMethodNotAllowed,
			want:       ErrorResponse{Error: "nope"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			e.GET("/", func(echo.Context) error { return tt.err })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(echo.HeaderXRequestID, "req-1")
			rec := serve(e, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			got := decodeError(t, rec)
			assert.False(t, got.Success)
			assert.Equal(t, "req-1", got.RequestID)
			got.RequestID, got.TraceID = "", ""
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextActorHeaders(t *testing.T) {
	for _, trust := range []bool{true, false} {
		e := echo.New()
		e.Use(Context(trust))
		var actor appctx.Actor
		var requestID string
		e.GET("/", func(c echo.Context) error {
			actor = appctx.GetActor(c.Request().Context())
			requestID = appctx.GetRequestID(c.Request().Context())
			return c.NoContent(http.StatusNoContent)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderUserID, "op-1")
		req.Header.Set(HeaderUserEmail, "op@example.test")
		rec := serve(e, req)

		assert.NotEmpty(t, requestID)
		assert.Equal(t, requestID, rec.Header().Get(echo.HeaderXRequestID))
		if trust {
			assert.Equal(t, appctx.Actor{ID: "op-1", Email: "op@example.test"}, actor)
		} else {
			assert.Empty(t, actor.ID)
		}
	}
}

func TestAuthentication(t *testing.T) {
	verify := func(_ context.Context, raw string) (*UserClaims, error) {
		switch raw {
		case "operator":
			c := &UserClaims{Sub: "u-1", Email: "op@example.test"}
			c.RealmAccess.Roles = []string{"directory-operator"}
			return c, nil
		case "viewer":
			return &UserClaims{Sub: "u-2", Roles: []string{"viewer"}}, nil
		}
		return nil, errors.New("bad signature")
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing token", header: "", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer junk", wantStatus: http.StatusUnauthorized},
		{name: "missing role", header: "Bearer viewer", wantStatus: http.StatusForbidden},
		{name: "operator", header: "Bearer operator", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			var actor appctx.Actor
			g := e.Group("", Authentication(testLogger(), verify, []string{"directory-operator", "admin"}))
			g.GET("/", func(c echo.Context) error {
				actor = appctx.GetActor(c.Request().Context())
				return c.NoContent(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := serve(e, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "u-1", actor.ID)
				assert.Equal(t, "op@example.test", actor.Email)
			}
		})
	}
}
