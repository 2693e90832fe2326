package security

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"
)

func TestTokenProvider_AccessRoundTrip(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	tok, err := p.IssueAccess("sess-1", "user-1", "khwopa")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if tok.Token == "" || tok.ID == "" {
		t.Fatalf("IssueAccess returned %+v", tok)
	}
	if d := time.Until(tok.ExpiresAt); d <= 14*time.Minute || d > 15*time.Minute {
		t.Errorf("access expiry in %v, want about 15m", d)
	}
	id, err := p.ValidateAccess(tok.Token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	want := Identity{UserID: "user-1", SessionID: "sess-1", CollegeID: "khwopa", TokenID: tok.ID}
	if id != want {
		t.Errorf("identity = %+v, want %+v", id, want)
	}
}

func TestTokenProvider_RefreshRoundTrip(t *testing.T) {
	p, _ := NewTestTokenProvider()
	tok, err := p.IssueRefresh("sess-1", "user-1", "")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	id, err := p.ValidateRefresh(tok.Token)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if id.SessionID != "sess-1" || id.UserID != "user-1" || id.TokenID != tok.ID {
		t.Errorf("identity = %+v", id)
	}
}

func TestTokenProvider_UseIsEnforced(t *testing.T) {
	p, _ := NewTestTokenProvider()
	access, _ := p.IssueAccess("s", "u", "")
	refresh, _ := p.IssueRefresh("s", "u", "")
	if _, err := p.ValidateRefresh(access.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token as refresh = %v, want ErrInvalidToken", err)
	}
	if _, err := p.ValidateAccess(refresh.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token as access = %v, want ErrInvalidToken", err)
	}
}

func TestTokenProvider_Expired(t *testing.T) {
	p, _ := NewTestTokenProvider()
	p.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err := p.IssueAccess("s", "u", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	p.now = time.Now
	if _, err := p.ValidateAccess(tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token = %v, want ErrInvalidToken", err)
	}
}

func TestTokenProvider_WrongIssuerOrKey(t *testing.T) {
	p, _ := NewTestTokenProvider()
	tok, _ := p.IssueAccess("s", "u", "")

	other := NewTokenProvider(p.signer, p.publicKey, "other-issuer", "test-audience", time.Minute, time.Hour)
	if _, err := other.ValidateAccess(tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong issuer = %v, want ErrInvalidToken", err)
	}
	otherAud := NewTokenProvider(p.signer, p.publicKey, "test-issuer", "other-aud", time.Minute, time.Hour)
	if _, err := otherAud.ValidateAccess(tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong audience = %v, want ErrInvalidToken", err)
	}
	q, _ := NewTestTokenProvider()
	if _, err := q.ValidateAccess(tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign key = %v, want ErrInvalidToken", err)
	}
	if _, err := p.ValidateAccess("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage = %v, want ErrInvalidToken", err)
	}
}

func TestTokenProvider_RSA(t *testing.T) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	p := NewTokenProvider(k, &k.PublicKey, "iss", "aud", time.Minute, time.Hour)
	tok, err := p.IssueAccess("s", "u", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(tok.Token); err != nil {
		t.Errorf("ValidateAccess: %v", err)
	}
}
