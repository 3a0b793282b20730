package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-lms/core/auth"
	"github.com/trezcool/masomo-lms/core/user"
)

// authMiddleware resolves the caller through the guard and lets it through only when its role is one of roles
// (any role when empty). The session is kept in the context for the handlers.
func authMiddleware(guard *auth.Guard, roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			sess, err := guard.Authenticate(req.Context(), req)
			if err != nil {
				return err
			}
			ctx.Set(contextSessionKey, sess)
			if err = auth.Authorize(sess.Identity, roles...); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
