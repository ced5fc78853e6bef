package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateToken creates a cryptographically secure random token, used as the
// opaque refresh credential value.
func GenerateToken() string {
	bytes := make([]byte, 32) // 32 bytes = 256 bits
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
