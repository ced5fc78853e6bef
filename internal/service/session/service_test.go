package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
	"github.com/mkhalid11/learnbuddy/backend/internal/service/session"
	"github.com/mkhalid11/learnbuddy/backend/pkg/auth"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[int64]*domain.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) GetUserByEmail(email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetUserByID(id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) setRole(id int64, role domain.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].Role = role
}

type fakeRefreshStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]*domain.RefreshSession
}

func newFakeRefreshStore(ttl time.Duration) *fakeRefreshStore {
	return &fakeRefreshStore{ttl: ttl, records: make(map[string]*domain.RefreshSession)}
}

func (f *fakeRefreshStore) Create(userID int64) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := auth.GenerateToken()
	expiresAt := time.Now().Add(f.ttl)
	f.records[token] = &domain.RefreshSession{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return token, expiresAt, nil
}

func (f *fakeRefreshStore) Lookup(token string) (*domain.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[token]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeRefreshStore) Revoke(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[token]; ok {
		rec.Revoked = true
	}
	return nil
}

func (f *fakeRefreshStore) RevokeAllForUser(userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.UserID == userID {
			rec.Revoked = true
		}
	}
	return nil
}

func (f *fakeRefreshStore) expire(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[token].ExpiresAt = time.Now().Add(-time.Minute)
}

var (
	hashOnce   sync.Once
	cachedHash string
)

func passwordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		hash, err := auth.HashPassword("parent-password")
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		cachedHash = hash
	})
	return cachedHash
}

type fixture struct {
	users   *fakeUserRepo
	refresh *fakeRefreshStore
	codec   *auth.Codec
	issuer  *session.Issuer
}

func setup(t *testing.T) *fixture {
	t.Helper()

	codec, err := auth.NewCodec("issuer-test-secret")
	require.NoError(t, err)

	users := newFakeUserRepo(&domain.User{
		ID:           1,
		Email:        "parent@example.com",
		FirstName:    "Pat",
		LastName:     "Parent",
		Role:         domain.RoleParent,
		PasswordHash: passwordHash(t),
	})
	refresh := newFakeRefreshStore(24 * time.Hour)

	return &fixture{
		users:   users,
		refresh: refresh,
		codec:   codec,
		issuer:  session.NewIssuer(users, refresh, codec, time.Hour),
	}
}

func TestLoginSuccess(t *testing.T) {
	f := setup(t)

	pair, err := f.issuer.Login("parent@example.com", "parent-password")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.True(t, pair.RefreshExpiry.After(time.Now()))

	claims, err := f.codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, int64(1), claims.UserID)
	require.Equal(t, domain.RoleParent, claims.Role)

	rec, err := f.refresh.Lookup(pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, int64(1), rec.UserID)
}

// Unknown subject and password mismatch must be indistinguishable to the
// caller, to avoid account enumeration.
func TestLoginFailuresAreUniform(t *testing.T) {
	f := setup(t)

	_, errUnknown := f.issuer.Login("nobody@example.com", "whatever")
	require.ErrorIs(t, errUnknown, session.ErrAuthenticationFailed)

	_, errMismatch := f.issuer.Login("parent@example.com", "wrong-password")
	require.ErrorIs(t, errMismatch, session.ErrAuthenticationFailed)

	require.Equal(t, errUnknown.Error(), errMismatch.Error())
}

func TestRenewIssuesFreshAccessToken(t *testing.T) {
	f := setup(t)

	pair, err := f.issuer.Login("parent@example.com", "parent-password")
	require.NoError(t, err)

	accessToken, user, err := f.issuer.Renew(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)

	claims, err := f.codec.Verify(accessToken)
	require.NoError(t, err)
	require.Equal(t, domain.RoleParent, claims.Role)
}

// Claims are re-derived from the current user row at renewal time, so a role
// change since last login takes effect immediately.
func TestRenewPicksUpRoleChange(t *testing.T) {
	f := setup(t)

	pair, err := f.issuer.Login("parent@example.com", "parent-password")
	require.NoError(t, err)

	f.users.setRole(1, domain.RoleAdmin)

	accessToken, _, err := f.issuer.Renew(pair.RefreshToken)
	require.NoError(t, err)

	claims, err := f.codec.Verify(accessToken)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestRenewRejectsUnknownToken(t *testing.T) {
	f := setup(t)

	_, _, err := f.issuer.Renew("no-such-token")
	require.ErrorIs(t, err, session.ErrRefreshInvalid)
}

// A revoked record is rejected even when not yet expired.
func TestRenewRejectsRevokedToken(t *testing.T) {
	f := setup(t)

	pair, err := f.issuer.Login("parent@example.com", "parent-password")
	require.NoError(t, err)

	require.NoError(t, f.issuer.Logout(pair.RefreshToken))

	_, _, err = f.issuer.Renew(pair.RefreshToken)
	require.ErrorIs(t, err, session.ErrRefreshInvalid)
}

// An expired record is rejected even when not revoked.
func TestRenewRejectsExpiredToken(t *testing.T) {
	f := setup(t)

	pair, err := f.issuer.Login("parent@example.com", "parent-password")
	require.NoError(t, err)

	f.refresh.expire(pair.RefreshToken)

	_, _, err = f.issuer.Renew(pair.RefreshToken)
	require.ErrorIs(t, err, session.ErrRefreshInvalid)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setup(t)

	pair, err := f.issuer.Login("parent@example.com", "parent-password")
	require.NoError(t, err)

	require.NoError(t, f.issuer.Logout(pair.RefreshToken))
	require.NoError(t, f.issuer.Logout(pair.RefreshToken))
	require.NoError(t, f.issuer.Logout(""))
}

func TestRevokeAllForUser(t *testing.T) {
	f := setup(t)

	first, err := f.issuer.Login("parent@example.com", "parent-password")
	require.NoError(t, err)
	second, err := f.issuer.Login("parent@example.com", "parent-password")
	require.NoError(t, err)

	require.NoError(t, f.issuer.RevokeAllForUser(1))

	_, _, err = f.issuer.Renew(first.RefreshToken)
	require.ErrorIs(t, err, session.ErrRefreshInvalid)
	_, _, err = f.issuer.Renew(second.RefreshToken)
	require.ErrorIs(t, err, session.ErrRefreshInvalid)
}
