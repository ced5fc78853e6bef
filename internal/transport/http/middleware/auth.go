package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
	"github.com/mkhalid11/learnbuddy/backend/pkg/auth"
	"github.com/mkhalid11/learnbuddy/backend/pkg/httputil"
)

var (
	// ErrUnauthorized means no valid session: the credential is missing,
	// malformed, badly signed or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means a valid session whose role is not in the required
	// set. The caller is authenticated, just not authorized.
	ErrForbidden = errors.New("forbidden")
)

type claimsContextKey struct{}

// ClaimsFromContext returns the identity claims stashed by the authorizer.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*auth.Claims)
	return claims, ok
}

// Authorizer is the single choke point every protected handler goes through.
// It has no side effects beyond returning claims or failing.
type Authorizer struct {
	codec *auth.Codec
}

func NewAuthorizer(codec *auth.Codec) *Authorizer {
	return &Authorizer{codec: codec}
}

// Authorize locates the access credential (cookie or bearer header), verifies
// it and enforces the required-role set. An empty role set means
// authentication-only: any valid role passes. The finer-grained codec
// failures are collapsed into ErrUnauthorized so handlers need not branch on
// signature-vs-expiry distinctions.
func (a *Authorizer) Authorize(r *http.Request, requiredRoles ...domain.Role) (*auth.Claims, error) {
	tokenString, err := httputil.GetTokenFromRequest(r)
	if err != nil {
		return nil, fmt.Errorf("%w: missing credential", ErrUnauthorized)
	}

	claims, err := a.codec.Verify(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, err)
	}

	if len(requiredRoles) > 0 {
		allowed := false
		for _, role := range requiredRoles {
			if claims.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("%w: role %q not permitted", ErrForbidden, claims.Role)
		}
	}

	return claims, nil
}

// RequireRoles wraps a handler with an authorization check. 401 for
// authentication failures, 403 for role mismatches, with a JSON error body.
func (a *Authorizer) RequireRoles(next http.HandlerFunc, requiredRoles ...domain.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Authorize(r, requiredRoles...)
		if err != nil {
			if errors.Is(err, ErrForbidden) {
				httputil.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// RequireAuth is RequireRoles with an empty role set.
func (a *Authorizer) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return a.RequireRoles(next)
}
