package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

const audience = "Academia"

var (
	signingMethod = jwt.SigningMethodHS256

	ErrRefreshExpired = errors.New("refresh has expired")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role"`
}

// UserID returns the ID of the user the token was issued to.
func (c Claims) UserID() (int, error) {
	return strconv.Atoi(c.Subject)
}

// Tokens issues and parses signed access tokens.
type Tokens struct {
	secretKey         []byte
	issuer            string
	expiration        time.Duration
	refreshExpiration time.Duration
	NowFunc           func() time.Time // mockable
}

func NewTokens(conf *core.Config) *Tokens {
	return &Tokens{
		secretKey:         []byte(conf.SecretKey),
		issuer:            conf.AppName,
		expiration:        conf.Server.JWTExpirationDelta,
		refreshExpiration: conf.Server.JWTRefreshExpirationDelta,
		NowFunc:           time.Now,
	}
}

// UserClaims returns fresh claims for usr. origIat carries the original issue time over token refreshes.
func (t *Tokens) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := t.NowFunc()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   strconv.Itoa(usr.ID),
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// Sign generates a signed JWT token string representing the Claims.
func (t *Tokens) Sign(claims *Claims) (string, error) {
	ss, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.secretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Parse validates the raw token and returns its claims.
// Any failure (malformed, bad signature, expired, wrong issuer) is an authentication error.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(*jwt.Token) (interface{}, error) { return t.secretKey, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.NowFunc),
	)
	if err != nil {
		return nil, core.NewAuthenticationError(err.Error())
	}
	if _, err = claims.UserID(); err != nil {
		return nil, core.NewAuthenticationError("invalid subject")
	}
	return claims, nil
}

// Refresh issues a new token for usr as long as the refresh window opened by the first login is not over.
func (t *Tokens) Refresh(claims *Claims, usr user.User) (string, error) {
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(t.refreshExpiration)
	if t.NowFunc().After(expTime) {
		return "", ErrRefreshExpired
	}
	return t.Sign(t.UserClaims(usr, claims.OrigIssuedAt))
}
