package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
)

const contextSessionKey = "session"

func contextSession(ctx echo.Context) (auth.Session, bool) {
	sess, ok := ctx.Get(contextSessionKey).(auth.Session)
	return sess, ok
}

// contextIdentity returns the caller of a route behind authMiddleware.
func contextIdentity(ctx echo.Context) (auth.Identity, error) {
	sess, ok := contextSession(ctx)
	if !ok {
		return auth.Identity{}, core.NewAuthenticationError("no session in context")
	}
	return sess.Identity, nil
}

func setAuthCookie(ctx echo.Context, conf *core.Config, token string, expires time.Time) {
	ctx.SetCookie(&http.Cookie{
		Name:     conf.Server.AuthCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !conf.Debug,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookie(ctx echo.Context, conf *core.Config) {
	ctx.SetCookie(&http.Cookie{
		Name:     conf.Server.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !conf.Debug,
		SameSite: http.SameSiteLaxMode,
	})
}
