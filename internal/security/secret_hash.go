package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashSecret returns the hex-encoded SHA-256 of a short-lived secret (refresh token or OTP code).
// Only the hash is persisted; the raw value leaves the server once and is never stored.
func HashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// SecretHashEqual hashes provided and compares it with storedHash in constant time.
func SecretHashEqual(provided, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSecret(provided)), []byte(storedHash)) == 1
}
