package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type UserClaims struct {
	Sub         string   `json:"sub"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// AllRoles merges the top-level and realm role claims.
func (c UserClaims) AllRoles() []string {
	return append(append([]string{}, c.Roles...), c.RealmAccess.Roles...)
}

// ClaimsVerifier verifies a raw bearer token and returns its claims.
type ClaimsVerifier func(ctx context.Context, rawToken string) (*UserClaims, error)

// NewOIDCVerifier discovers issuer and verifies tokens issued for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (ClaimsVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})

	return func(ctx context.Context, rawToken string) (*UserClaims, error) {
		idToken, err := verifier.Verify(ctx, rawToken)
		if err != nil {
			return nil, err
		}
		var claims UserClaims
		if err := idToken.Claims(&claims); err != nil {
			return nil, err
		}
		return &claims, nil
	}, nil
}

// Authentication requires a verified bearer token carrying one of
// operatorRoles and records the operator as the request actor.
func Authentication(logger ectologger.Logger, verify ClaimsVerifier, operatorRoles []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return httperror.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			claims, err := verify(verifyCtx, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return httperror.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			roles := claims.AllRoles()
			if !hasAnyRole(roles, operatorRoles) {
				logger.WithContext(ctx).WithField("sub", claims.Sub).Warn("token lacks an operator role")
				return httperror.NewHTTPError(http.StatusForbidden, "operator role required")
			}

			ctx = appctx.WithActor(ctx, appctx.Actor{ID: claims.Sub, Email: claims.Email})
			ctx = appctx.SetUserRoles(ctx, roles)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func hasAnyRole(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, role := range want {
		if slices.Contains(have, role) {
			return true
		}
	}
	return false
}
