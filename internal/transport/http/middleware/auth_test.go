package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
	"github.com/mkhalid11/learnbuddy/backend/internal/transport/http/middleware"
	"github.com/mkhalid11/learnbuddy/backend/pkg/auth"
	"github.com/mkhalid11/learnbuddy/backend/pkg/httputil"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, codec *auth.Codec, role domain.Role) string {
	t.Helper()
	token, err := codec.Sign(&domain.User{
		ID:        7,
		Email:     "user@example.com",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	}, time.Hour)
	require.NoError(t, err)
	return token
}

func newAuthorizer(t *testing.T) (*middleware.Authorizer, *auth.Codec) {
	t.Helper()
	codec, err := auth.NewCodec("authorizer-test-secret")
	require.NoError(t, err)
	return middleware.NewAuthorizer(codec), codec
}

// The same credential must produce the same outcome whether it arrives in the
// auth cookie or the Authorization header.
func TestAuthorizeCookieAndBearerAreEquivalent(t *testing.T) {
	authorizer, codec := newAuthorizer(t)
	token := signedToken(t, codec, domain.RoleParent)

	viaCookie := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	viaCookie.AddCookie(&http.Cookie{Name: httputil.AuthCookieName, Value: token})

	viaHeader := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	viaHeader.Header.Set("Authorization", "Bearer "+token)

	for _, r := range []*http.Request{viaCookie, viaHeader} {
		claims, err := authorizer.Authorize(r)
		require.NoError(t, err)
		require.Equal(t, int64(7), claims.UserID)
		require.Equal(t, domain.RoleParent, claims.Role)
	}
}

func TestAuthorizeMissingCredential(t *testing.T) {
	authorizer, _ := newAuthorizer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	_, err := authorizer.Authorize(r)
	require.ErrorIs(t, err, middleware.ErrUnauthorized)
}

// Expired and badly signed credentials both collapse into ErrUnauthorized at
// this layer; the distinction only matters to the renewal path.
func TestAuthorizeInvalidCredential(t *testing.T) {
	authorizer, codec := newAuthorizer(t)

	expired, err := codec.Sign(&domain.User{ID: 7, Role: domain.RoleParent}, -time.Second)
	require.NoError(t, err)

	otherCodec, err := auth.NewCodec("some-other-secret")
	require.NoError(t, err)
	foreign := signedToken(t, otherCodec, domain.RoleParent)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong secret": foreign,
		"garbage":      "not.a.token",
	} {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		_, err := authorizer.Authorize(r)
		require.ErrorIs(t, err, middleware.ErrUnauthorized, name)
	}
}

func TestAuthorizeRoleMismatchIsForbidden(t *testing.T) {
	authorizer, codec := newAuthorizer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, codec, domain.RoleParent))

	_, err := authorizer.Authorize(r, domain.RoleAdmin)
	require.ErrorIs(t, err, middleware.ErrForbidden)
	require.NotErrorIs(t, err, middleware.ErrUnauthorized)
}

// An empty role set means authentication-only: any valid role passes.
func TestAuthorizeEmptyRoleSet(t *testing.T) {
	authorizer, codec := newAuthorizer(t)

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleParent, domain.RoleChild} {
		r := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
		r.Header.Set("Authorization", "Bearer "+signedToken(t, codec, role))

		claims, err := authorizer.Authorize(r)
		require.NoError(t, err)
		require.Equal(t, role, claims.Role)
	}
}

func TestRequireRolesStatusCodes(t *testing.T) {
	authorizer, codec := newAuthorizer(t)

	handler := authorizer.RequireRoles(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, int64(7), claims.UserID)
		w.WriteHeader(http.StatusOK)
	}, domain.RoleAdmin)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"no credential", "", http.StatusUnauthorized},
		{"wrong role", signedToken(t, codec, domain.RoleParent), http.StatusForbidden},
		{"admin", signedToken(t, codec, domain.RoleAdmin), http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			if tc.token != "" {
				r.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			handler(w, r)
			require.Equal(t, tc.status, w.Code)
			if tc.status != http.StatusOK {
				require.Contains(t, w.Body.String(), "error")
			}
		})
	}
}
