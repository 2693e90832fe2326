package security

import "time"

// NewTestTokenProvider returns a TokenProvider backed by a freshly generated ES256 key pair,
// issuer "test-issuer" and audience "test-audience". For tests only.
func NewTestTokenProvider() (*TokenProvider, error) {
	signer, pub, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(signer, pub, "test-issuer", "test-audience", 15*time.Minute, 24*time.Hour), nil
}
