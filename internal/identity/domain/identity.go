package domain

import "time"

// Identity is a credential linked to a user. Signup creates a local identity whose
// ProviderID is the user's email.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string
	CreatedAt    time.Time
}

type IdentityProvider string

const IdentityProviderLocal IdentityProvider = "local"
