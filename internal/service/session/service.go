package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
	"github.com/mkhalid11/learnbuddy/backend/pkg/auth"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAuthenticationFailed covers both an unknown email and a password
	// mismatch. Collapsing them prevents account enumeration.
	ErrAuthenticationFailed = errors.New("invalid credentials")
	// ErrRefreshInvalid covers a refresh record that is missing, revoked or
	// expired. All three must cause hard rejection, never silent renewal.
	ErrRefreshInvalid = errors.New("invalid refresh token")
)

// UserRepository is the subset of the user store the issuer needs.
type UserRepository interface {
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByID(id int64) (*domain.User, error)
}

// RefreshStore persists refresh-credential records. Lookup returns nil, nil
// on not-found; usability of a found record is decided here, not in the store.
type RefreshStore interface {
	Create(userID int64) (token string, expiresAt time.Time, err error)
	Lookup(token string) (*domain.RefreshSession, error)
	Revoke(token string) error
	RevokeAllForUser(userID int64) error
}

// TokenPair is what a successful login hands back to the transport layer.
type TokenPair struct {
	AccessToken   string
	RefreshToken  string
	RefreshExpiry time.Time
	User          *domain.User
}

// Issuer mints access credentials and manages refresh credentials. It is the
// only component allowed to decide whether a refresh record is still usable.
type Issuer struct {
	users     UserRepository
	refresh   RefreshStore
	codec     *auth.Codec
	accessTTL time.Duration
}

func NewIssuer(users UserRepository, refresh RefreshStore, codec *auth.Codec, accessTTL time.Duration) *Issuer {
	return &Issuer{
		users:     users,
		refresh:   refresh,
		codec:     codec,
		accessTTL: accessTTL,
	}
}

// Login verifies the submitted password and mints a token pair.
func (s *Issuer) Login(email, password string) (*TokenPair, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("login lookup failed: %w", err)
	}
	if user == nil || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrAuthenticationFailed
	}
	return s.Issue(user)
}

// Issue mints an access credential and persists a new refresh credential for
// an already-authenticated user (login or registration).
func (s *Issuer) Issue(user *domain.User) (*TokenPair, error) {
	accessToken, err := s.codec.Sign(user, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, expiresAt, err := s.refresh.Create(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		RefreshExpiry: expiresAt,
		User:          user,
	}, nil
}

// Renew validates a refresh credential and issues a fresh access credential.
// Claims are re-derived from the current user row, so a role change since
// the last login takes effect immediately. The refresh credential itself is
// not rotated.
func (s *Issuer) Renew(refreshToken string) (string, *domain.User, error) {
	record, err := s.refresh.Lookup(refreshToken)
	if err != nil {
		return "", nil, fmt.Errorf("refresh lookup failed: %w", err)
	}
	if record == nil || record.Revoked || time.Now().After(record.ExpiresAt) {
		return "", nil, ErrRefreshInvalid
	}

	user, err := s.users.GetUserByID(record.UserID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user for renewal: %w", err)
	}
	if user == nil {
		return "", nil, ErrRefreshInvalid
	}

	accessToken, err := s.codec.Sign(user, s.accessTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	return accessToken, user, nil
}

// Logout revokes the refresh credential. Idempotent: an unknown or already
// revoked token is not an error.
func (s *Issuer) Logout(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.refresh.Revoke(refreshToken); err != nil {
		log.Warn().Err(err).Msg("[SESSION] failed to revoke refresh token on logout")
		return err
	}
	return nil
}

// RevokeAllForUser invalidates every refresh credential a user holds, used
// when an admin disables an account.
func (s *Issuer) RevokeAllForUser(userID int64) error {
	return s.refresh.RevokeAllForUser(userID)
}
