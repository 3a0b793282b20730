package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

type (
	// Identity is the caller resolved from a request. It never holds credentials.
	Identity struct {
		ID    int       `json:"id"`
		Name  string    `json:"name"`
		Email string    `json:"email"`
		Role  user.Role `json:"role"`
	}

	// Session is an Identity along with the claims of the token it was resolved from.
	Session struct {
		Identity
		Claims *Claims
	}

	UserGetter interface {
		GetByID(ctx context.Context, id int) (user.User, error)
	}

	// RevocationStore remembers revoked token IDs until the tokens expire.
	RevocationStore interface {
		Revoke(ctx context.Context, tokenID string, until time.Time) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}

	Guard struct {
		tokens     *Tokens
		users      UserGetter
		revoked    RevocationStore
		cookieName string
	}
)

func IdentityFromUser(usr user.User) Identity {
	return Identity{ID: usr.ID, Name: usr.Name, Email: usr.Email, Role: usr.Role}
}

func NewGuard(tokens *Tokens, users UserGetter, revoked RevocationStore, cookieName string) *Guard {
	return &Guard{
		tokens:     tokens,
		users:      users,
		revoked:    revoked,
		cookieName: cookieName,
	}
}

// ExtractToken reads the bearer token from the Authorization header, falling back to the auth cookie.
func ExtractToken(r *http.Request, cookieName string) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// Authenticate resolves the caller of r.
func (g *Guard) Authenticate(ctx context.Context, r *http.Request) (Session, error) {
	raw := ExtractToken(r, g.cookieName)
	if raw == "" {
		return Session{}, core.NewAuthenticationError("missing token")
	}

	claims, err := g.tokens.Parse(raw)
	if err != nil {
		return Session{}, err
	}

	revoked, err := g.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, errors.Wrap(err, "checking token revocation")
	}
	if revoked {
		return Session{}, core.NewAuthenticationError("token revoked")
	}

	id, _ := claims.UserID() // checked by Parse
	usr, err := g.users.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Session{}, core.NewAuthenticationError("unknown user")
		}
		return Session{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return Session{}, core.NewAuthenticationError("account deactivated")
	}
	if usr.Role != claims.Role {
		return Session{}, core.NewAuthenticationError("role changed since login")
	}

	return Session{Identity: IdentityFromUser(usr), Claims: claims}, nil
}

// RequireAuth resolves the caller of r and checks that its role is one of allowed (any role when empty).
func (g *Guard) RequireAuth(ctx context.Context, r *http.Request, allowed ...user.Role) (Identity, error) {
	sess, err := g.Authenticate(ctx, r)
	if err != nil {
		return Identity{}, err
	}
	if err = Authorize(sess.Identity, allowed...); err != nil {
		return Identity{}, err
	}
	return sess.Identity, nil
}

// Authorize checks that the identity's role is one of allowed (any role when empty).
func Authorize(ident Identity, allowed ...user.Role) error {
	if len(allowed) == 0 || ident.Role.In(allowed...) {
		return nil
	}
	return core.NewAuthorizationError(ident.Role.String())
}

// Revoke invalidates the session's token until it expires.
func (g *Guard) Revoke(ctx context.Context, sess Session) error {
	until := g.tokens.NowFunc()
	if sess.Claims.ExpiresAt != nil {
		until = sess.Claims.ExpiresAt.Time
	}
	return errors.Wrap(g.revoked.Revoke(ctx, sess.Claims.ID, until), "revoking token")
}
