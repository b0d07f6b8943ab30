package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core/access"
)

// ownerMiddleware puts the bearer's owner tag in the request context. It runs after the JWT middleware.
func ownerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		tag := claims.Owner()
		if tag == "" {
			return errUnauthorized
		}
		req := ctx.Request()
		ctx.SetRequest(req.WithContext(access.WithOwner(req.Context(), tag)))
		return next(ctx)
	}
}
