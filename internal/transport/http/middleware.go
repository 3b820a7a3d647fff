package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
	"github.com/njprem/ReviewHub_BackEnd/internal/util"
)

const contextPrincipalKey = "principal"

// TokenVerifier turns a bearer token into the caller identity.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// JWTVerifier adapts util.JWTManager to TokenVerifier.
type JWTVerifier struct {
	Manager *util.JWTManager
}

func (v JWTVerifier) Verify(token string) (domain.Principal, error) {
	claims, err := v.Manager.Parse(token)
	if err != nil {
		return domain.Principal{}, err
	}
	return claims.Principal()
}

func RequireAuth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.TrimSpace(authHeader) == "" {
				return c.JSON(http.StatusUnauthorized, util.Error("missing authorization header"))
			}
			token, ok := bearerToken(authHeader)
			if !ok {
				return c.JSON(http.StatusUnauthorized, util.Error("invalid authorization header"))
			}
			principal, err := verifier.Verify(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, util.Error("invalid or expired token"))
			}
			c.Set(contextPrincipalKey, principal)
			return next(c)
		}
	}
}

// OptionalAuth attaches the principal when a valid bearer token is present and
// otherwise lets the request through as anonymous. A malformed or invalid
// token is still rejected.
func OptionalAuth(verifier TokenVerifier) echo.MiddlewareFunc {
	required := RequireAuth(verifier)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withAuth := required(next)
		return func(c echo.Context) error {
			if strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization)) == "" {
				return next(c)
			}
			return withAuth(c)
		}
	}
}

func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := CurrentPrincipal(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
			}
			if !principal.IsAdmin() {
				return c.JSON(http.StatusForbidden, util.Error("admin privileges required"))
			}
			return next(c)
		}
	}
}

// CurrentPrincipal returns the authenticated caller, or the zero principal and false.
func CurrentPrincipal(c echo.Context) (domain.Principal, bool) {
	principal, ok := c.Get(contextPrincipalKey).(domain.Principal)
	if !ok || principal.IsAnonymous() {
		return domain.Principal{}, false
	}
	return principal, true
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
