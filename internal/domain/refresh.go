package domain

import "time"

// RefreshSession is the server-side record backing one refresh credential.
// The token value itself is opaque; validity is decided by the lookup caller
// (revoked flag + expiry), never by the token's contents.
type RefreshSession struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}
