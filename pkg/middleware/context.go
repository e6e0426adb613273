package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
)

const (
	// HeaderUserID names the operator when authentication is disabled.
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Context stores request metadata on the request context. The actor headers
// are only trusted when trustActorHeaders is set; otherwise Authentication
// fills the actor from the verified token.
func Context(trustActorHeaders bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetReferer(ctx, req.Referer())
			if trustActorHeaders {
				ctx = context.WithActor(ctx, context.Actor{
					ID:    req.Header.Get(HeaderUserID),
					Email: req.Header.Get(HeaderUserEmail),
				})
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
