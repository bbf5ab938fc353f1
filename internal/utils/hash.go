package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashRefreshToken returns the SHA-256 hash of a refresh token as a hex
// string. Only the hash is stored in the database, so stolen rows cannot
// be replayed as refresh tokens.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
