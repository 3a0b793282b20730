package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
	"github.com/trezcool/masomo-lms/core/user"
	"github.com/trezcool/masomo-lms/services/revocation"
)

type usersStub map[int]user.User

func (s usersStub) GetByID(_ context.Context, id int) (user.User, error) {
	if usr, ok := s[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func testConfig() *core.Config {
	return &core.Config{
		AppName:   "Masomo",
		SecretKey: "secret",
		Server: core.ServerConfig{
			AuthCookieName:            "auth-token",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
	}
}

func TestGuard_RequireAuth(t *testing.T) {
	conf := testConfig()
	tokens := auth.NewTokens(conf)

	teacher := user.User{ID: 1, Name: "Teacher", Email: "teacher@test.cd", Role: user.RoleTeacher, IsActive: true}
	student := user.User{ID: 2, Name: "Student", Email: "student@test.cd", Role: user.RoleStudent, IsActive: true}
	inactive := user.User{ID: 3, Name: "Gone", Email: "gone@test.cd", Role: user.RoleStudent, IsActive: false}
	promoted := user.User{ID: 4, Name: "Promoted", Email: "promoted@test.cd", Role: user.RoleTeacher, IsActive: true}
	users := usersStub{teacher.ID: teacher, student.ID: student, inactive.ID: inactive, promoted.ID: promoted}

	store := revocation.NewMemoryStore()
	guard := auth.NewGuard(tokens, users, store, conf.Server.AuthCookieName)

	sign := func(usr user.User) string {
		token, err := tokens.Sign(tokens.UserClaims(usr))
		require.NoError(t, err)
		return token
	}

	expiredTokens := auth.NewTokens(conf)
	expiredTokens.NowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expiredTokens.Sign(expiredTokens.UserClaims(teacher))
	require.NoError(t, err)

	otherConf := testConfig()
	otherConf.SecretKey = "not the secret"
	otherTokens := auth.NewTokens(otherConf)
	forgedToken, err := otherTokens.Sign(otherTokens.UserClaims(teacher))
	require.NoError(t, err)

	revokedClaims := tokens.UserClaims(teacher)
	revokedToken, err := tokens.Sign(revokedClaims)
	require.NoError(t, err)
	require.NoError(t, guard.Revoke(context.Background(), auth.Session{Claims: revokedClaims}))

	staleRole := promoted
	staleRole.Role = user.RoleStudent

	tests := []struct {
		name      string
		header    string
		cookie    string
		allowed   []user.Role
		wantID    int
		wantAuthN bool
		wantAuthZ bool
	}{
		{name: "no credentials", wantAuthN: true},
		{name: "malformed header", header: "Bearer lol.lol.lol", wantAuthN: true},
		{name: "not a bearer", header: "Basic " + sign(teacher), wantAuthN: true},
		{name: "expired", header: "Bearer " + expiredToken, wantAuthN: true},
		{name: "bad signature", header: "Bearer " + forgedToken, wantAuthN: true},
		{name: "revoked", header: "Bearer " + revokedToken, wantAuthN: true},
		{name: "deactivated user", header: "Bearer " + sign(inactive), wantAuthN: true},
		{name: "unknown user", header: "Bearer " + sign(user.User{ID: 99, Role: user.RoleStudent}), wantAuthN: true},
		{name: "role changed since login", header: "Bearer " + sign(staleRole), wantAuthN: true},
		{name: "wrong role", header: "Bearer " + sign(student), allowed: []user.Role{user.RoleTeacher}, wantAuthZ: true},
		{name: "any role", header: "Bearer " + sign(student), wantID: student.ID},
		{name: "allowed role", header: "Bearer " + sign(teacher), allowed: []user.Role{user.RoleTeacher}, wantID: teacher.ID},
		{name: "lowercase bearer", header: "bearer " + sign(teacher), wantID: teacher.ID},
		{name: "cookie fallback", cookie: sign(student), allowed: []user.Role{user.RoleStudent, user.RoleAdmin}, wantID: student.ID},
		{name: "header wins over cookie", header: "Bearer " + sign(teacher), cookie: sign(student), wantID: teacher.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: conf.Server.AuthCookieName, Value: tt.cookie})
			}

			ident, err := guard.RequireAuth(context.Background(), req, tt.allowed...)
			switch {
			case tt.wantAuthN:
				assert.True(t, core.IsAuthenticationError(err), "want AuthenticationError, got %v", err)
			case tt.wantAuthZ:
				assert.True(t, core.IsAuthorizationError(err), "want AuthorizationError, got %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, ident.ID)
				assert.Equal(t, users[tt.wantID].Role, ident.Role)
			}
		})
	}
}

func TestTokens_Refresh(t *testing.T) {
	conf := testConfig()
	tokens := auth.NewTokens(conf)
	usr := user.User{ID: 1, Name: "T", Email: "t@test.cd", Role: user.RoleTeacher, IsActive: true}

	fresh := tokens.UserClaims(usr)
	token, err := tokens.Refresh(fresh, usr)
	require.NoError(t, err)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, fresh.OrigIssuedAt, claims.OrigIssuedAt, "original issue time is carried over")
	assert.NotEqual(t, fresh.ID, claims.ID)

	old := tokens.UserClaims(usr, time.Now().Add(-2*conf.Server.JWTRefreshExpirationDelta).Unix())
	_, err = tokens.Refresh(old, usr)
	assert.Equal(t, auth.ErrRefreshExpired, err)
}
