package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
)

// Verification failures are kept distinct because callers react differently:
// malformed and bad-signature tokens are rejected outright, while an expired
// token is still eligible for renewal against the refresh endpoint.
var (
	ErrSecretMissing    = errors.New("jwt secret is not configured")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
)

// Claims represents the identity payload of an access token.
type Claims struct {
	UserID    int64       `json:"user_id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens with a process-wide HS256 secret.
// Verification is stateless: validity depends only on the signature and the
// expiry claim, never on a lookup.
type Codec struct {
	secret []byte
}

// NewCodec fails when the secret is unconfigured. That is a fatal startup
// condition, surfaced from main, not a runtime error.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrSecretMissing
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Sign creates an access token for the user with the given TTL.
func (c *Codec) Sign(user *domain.User, ttl time.Duration) (string, error) {
	if !domain.ValidRole(user.Role) {
		return "", fmt.Errorf("cannot sign token for unknown role %q", user.Role)
	}

	now := time.Now()
	claims := &Claims{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates an access token. It returns exactly one of
// ErrMalformedToken, ErrInvalidSignature or ErrTokenExpired on failure.
// Only the expiry claim is validated; a token with an issued-at in the
// future is accepted as long as it has not expired.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrInvalidSignature
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSignature
	}
	if !domain.ValidRole(claims.Role) {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
