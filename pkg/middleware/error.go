package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

const (
	// MetaRequiresSetup marks an error the operator fixes by configuring the provider.
	MetaRequiresSetup = "requires_setup"
	// MetaSolution carries operator remediation text.
	MetaSolution = "solution"
)

type ErrorResponse struct {
	Success       bool     `json:"success"`
	Error         string   `json:"error"`
	Errors        []string `json:"errors,omitempty"`
	RequiresSetup bool     `json:"requires_setup,omitempty"`
	Solution      string   `json:"solution,omitempty"`
	RequestID     string   `json:"request_id"`
	TraceID       string   `json:"trace_id"`
}

func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		resp := ErrorResponse{
			Error:     "Internal Server Error",
			RequestID: appctx.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
		}
		code := http.StatusInternalServerError

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				resp.Error = msg
			} else {
				resp.Error = http.StatusText(he.Code)
			}
		}

		if httperror.IsHTTPError(err) {
			httperr := httperror.ToHTTPError(err)
			code = httperror.GetStatusCode(err)
			resp.Error = httperr.Error()
			if violations, ok := httperr.Meta[validation.MetaViolations].([]string); ok {
				resp.Errors = violations
			}
			if setup, ok := httperr.Meta[MetaRequiresSetup].(bool); ok {
				resp.RequiresSetup = setup
			}
			if solution, ok := httperr.Meta[MetaSolution].(string); ok {
				resp.Solution = solution
			}
		}

		log := logger.WithContext(ctx).WithError(err).WithField("status", code)
		if code >= http.StatusInternalServerError {
			log.Error("api is returning an error")
		} else {
			log.Warn("api is returning an error")
		}

		_ = c.JSON(code, resp)
	}
}
