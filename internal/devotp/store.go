// Package devotp keeps the latest signup code per email in memory so local development
// can read it from GET /dev/otp instead of a mailbox. Only wired when OTP_RETURN_TO_CLIENT is set.
package devotp

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Store holds plain codes by email for dev-only retrieval.
type Store interface {
	// Put stores code for email until expiresAt, replacing any earlier code.
	Put(ctx context.Context, email, code string, expiresAt time.Time)
	// Get returns the code for email if present and not expired.
	Get(ctx context.Context, email string) (code string, ok bool)
	// Delete forgets the code for email, e.g. after it was verified.
	Delete(ctx context.Context, email string)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *MemoryStore) Put(_ context.Context, email, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key(email)] = entry{code: code, expiresAt: expiresAt}
}

func (s *MemoryStore) Get(_ context.Context, email string) (string, bool) {
	k := key(email)
	s.mu.RLock()
	e, ok := s.m[k]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		if cur, still := s.m[k]; still && cur == e {
			delete(s.m, k)
		}
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}

func (s *MemoryStore) Delete(_ context.Context, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key(email))
}
