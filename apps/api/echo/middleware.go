package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// portalMiddleware rejects tokens for which `allowed` is false.
func portalMiddleware(allowed func(ctx echo.Context, claims Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !allowed(ctx, claims) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// adminMiddleware lets admins holding any of `roles` through.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return portalMiddleware(func(ctx echo.Context, claims Claims) bool {
		return claims.IsAdmin && contextHasAnyRole(ctx, roles)
	})
}

// staffMiddleware lets instructors and admins through.
func staffMiddleware() echo.MiddlewareFunc {
	return portalMiddleware(func(_ echo.Context, claims Claims) bool {
		return claims.IsAdmin || claims.IsInstructor
	})
}
