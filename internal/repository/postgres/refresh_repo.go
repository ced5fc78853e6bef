package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
	"github.com/mkhalid11/learnbuddy/backend/pkg/auth"
)

// RefreshRepo persists refresh-credential records. The store only reads and
// writes rows; whether a looked-up record is still usable (not revoked, not
// expired) is judged by the session service.
type RefreshRepo struct {
	DB  *sql.DB
	TTL time.Duration
}

func NewRefreshRepo(db *sql.DB, ttl time.Duration) *RefreshRepo {
	return &RefreshRepo{DB: db, TTL: ttl}
}

// Create mints a new opaque refresh token for the user and persists it.
func (r *RefreshRepo) Create(userID int64) (string, time.Time, error) {
	token := auth.GenerateToken()
	expiresAt := time.Now().Add(r.TTL)

	query := `
	INSERT INTO refresh_tokens (token, user_id, expires_at)
	VALUES ($1, $2, $3);
	`
	_, err := r.DB.Exec(query, token, userID, expiresAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create refresh token: %v", err)
	}
	return token, expiresAt, nil
}

// Lookup retrieves a refresh record by token value. Returns nil, nil when no
// record exists.
func (r *RefreshRepo) Lookup(token string) (*domain.RefreshSession, error) {
	query := `
	SELECT token, user_id, expires_at, revoked, created_at
	FROM refresh_tokens
	WHERE token = $1;
	`
	var rs domain.RefreshSession
	err := r.DB.QueryRow(query, token).Scan(
		&rs.Token,
		&rs.UserID,
		&rs.ExpiresAt,
		&rs.Revoked,
		&rs.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %v", err)
	}
	return &rs, nil
}

// Revoke marks a refresh token as revoked. Idempotent: revoking an already
// revoked or unknown token is not an error.
func (r *RefreshRepo) Revoke(token string) error {
	query := `
	UPDATE refresh_tokens
	SET revoked = TRUE
	WHERE token = $1;
	`
	_, err := r.DB.Exec(query, token)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %v", err)
	}
	return nil
}

// RevokeAllForUser revokes every refresh token owned by the user
func (r *RefreshRepo) RevokeAllForUser(userID int64) error {
	query := `
	UPDATE refresh_tokens
	SET revoked = TRUE
	WHERE user_id = $1 AND revoked = FALSE;
	`
	_, err := r.DB.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke user refresh tokens: %v", err)
	}
	return nil
}

// DeleteExpired deletes refresh rows that expired more than the retention
// window ago, plus revoked rows past the same age.
func (r *RefreshRepo) DeleteExpired(olderThanDays int) (int64, error) {
	query := `
	DELETE FROM refresh_tokens
	WHERE (expires_at < NOW() OR revoked = TRUE)
	AND created_at < NOW() - INTERVAL '1 day' * $1;
	`
	result, err := r.DB.Exec(query, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup refresh tokens: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %v", err)
	}
	return rowsAffected, nil
}
