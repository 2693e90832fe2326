package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed, expired, or signed by another key.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims are the claims carried by an access token. sub is the user ID.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	CollegeID string `json:"college_id,omitempty"`
	Use       string `json:"use"`
}

// RefreshClaims are the claims carried by a refresh token. jti binds the token to the
// session row so a rotated token cannot be replayed.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	CollegeID string `json:"college_id,omitempty"`
	Use       string `json:"use"`
}

const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// Identity is the validated subject of a token.
type Identity struct {
	UserID    string
	SessionID string
	CollegeID string
	TokenID   string
}

// IssuedToken is a signed token with its jti and expiry.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenProvider signs and validates access and refresh JWTs with an RSA (RS256) or
// ECDSA (ES256) key pair.
type TokenProvider struct {
	signer     crypto.Signer
	publicKey  crypto.PublicKey
	method     jwt.SigningMethod
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider. The signing method follows the key type.
func NewTokenProvider(signer crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	var method jwt.SigningMethod
	switch KeyAlg(signer.Public()) {
	case "RS256":
		method = jwt.SigningMethodRS256
	case "ES256":
		method = jwt.SigningMethodES256
	}
	return &TokenProvider{
		signer:     signer,
		publicKey:  publicKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// IssueAccess issues a short-lived access token for the user's session.
func (p *TokenProvider) IssueAccess(sessionID, userID, collegeID string) (IssuedToken, error) {
	reg, err := p.registered(userID, p.accessTTL)
	if err != nil {
		return IssuedToken{}, err
	}
	return p.sign(AccessClaims{RegisteredClaims: reg, SessionID: sessionID, CollegeID: collegeID, Use: useAccess}, reg)
}

// IssueRefresh issues a long-lived refresh token. The caller stores its hash and jti on the session.
func (p *TokenProvider) IssueRefresh(sessionID, userID, collegeID string) (IssuedToken, error) {
	reg, err := p.registered(userID, p.refreshTTL)
	if err != nil {
		return IssuedToken{}, err
	}
	return p.sign(RefreshClaims{RegisteredClaims: reg, SessionID: sessionID, CollegeID: collegeID, Use: useRefresh}, reg)
}

func (p *TokenProvider) registered(subject string, ttl time.Duration) (jwt.RegisteredClaims, error) {
	jti, err := generateJTI()
	if err != nil {
		return jwt.RegisteredClaims{}, err
	}
	now := p.now().UTC()
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}, nil
}

func (p *TokenProvider) sign(claims jwt.Claims, reg jwt.RegisteredClaims) (IssuedToken, error) {
	if p.method == nil {
		return IssuedToken{}, ErrInvalidKey
	}
	s, err := jwt.NewWithClaims(p.method, claims).SignedString(p.signer)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: s, ID: reg.ID, ExpiresAt: reg.ExpiresAt.Time}, nil
}

// ValidateAccess verifies signature, expiry, issuer and audience of an access token.
func (p *TokenProvider) ValidateAccess(tokenString string) (Identity, error) {
	var c AccessClaims
	if err := p.parse(tokenString, &c); err != nil {
		return Identity{}, err
	}
	if c.Use != useAccess {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.Subject, SessionID: c.SessionID, CollegeID: c.CollegeID, TokenID: c.ID}, nil
}

// ValidateRefresh verifies a refresh token the same way as ValidateAccess.
func (p *TokenProvider) ValidateRefresh(tokenString string) (Identity, error) {
	var c RefreshClaims
	if err := p.parse(tokenString, &c); err != nil {
		return Identity{}, err
	}
	if c.Use != useRefresh {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.Subject, SessionID: c.SessionID, CollegeID: c.CollegeID, TokenID: c.ID}, nil
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims) error {
	if p.method == nil {
		return ErrInvalidToken
	}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return p.publicKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return ErrInvalidToken
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return ErrInvalidToken
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
