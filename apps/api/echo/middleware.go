package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// requireClaims builds a middleware that rejects with 403 unless the
// request's JWT claims satisfy allowed.
func requireClaims(allowed func(ctx echo.Context, claims Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(ctx, claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// adminMiddleware lets admins through; with roles, only admins holding
// at least one of them.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return requireClaims(func(ctx echo.Context, claims Claims) bool {
		return claims.IsAdmin && contextHasAnyRole(ctx, roles)
	})
}

// staffMiddleware lets instructors and admins through.
func staffMiddleware() echo.MiddlewareFunc {
	return requireClaims(func(_ echo.Context, claims Claims) bool {
		return claims.IsAdmin || claims.IsInstructor
	})
}
