package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
)

// quietPaths are probe and scrape routes that would drown the request log.
var quietPaths = []string{"/api/v1/health", "/metrics"}

// Logger writes one line per request once the response is complete. Server
// errors log at error level, client errors at warn.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			for _, p := range quietPaths {
				if strings.HasPrefix(req.URL.Path, p) {
					return nil
				}
			}

			res := c.Response()
			ctx := req.Context()
			log := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":    appctx.GetRequestID(ctx),
				"actor_id":      appctx.GetUserID(ctx),
				"method":        req.Method,
				"route":         c.Path(),
				"status":        res.Status,
				"latency_ms":    time.Since(start).Milliseconds(),
				"remote_ip":     c.RealIP(),
				"response_size": res.Size,
			})

			switch {
			case res.Status >= http.StatusInternalServerError:
				log.Errorf("%s %s", req.Method, req.URL.Path)
			case res.Status >= http.StatusBadRequest:
				log.Warnf("%s %s", req.Method, req.URL.Path)
			default:
				log.Infof("%s %s", req.Method, req.URL.Path)
			}
			return nil
		}
	}
}
