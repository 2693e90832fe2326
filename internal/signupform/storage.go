package signupform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Keys under which PersistSession writes the session.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// Storage is the client-side key-value store holding the session.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// PersistSession writes exactly the access token, refresh token and user JSON.
func PersistSession(s Storage, t *SessionTokens) error {
	if t == nil || t.AccessToken == "" || t.RefreshToken == "" {
		return errors.New("signupform: incomplete session tokens")
	}
	user := string(t.User)
	if user == "" {
		user = "null"
	}
	for _, kv := range [][2]string{
		{KeyAccessToken, t.AccessToken},
		{KeyRefreshToken, t.RefreshToken},
		{KeyUser, user},
	} {
		if err := s.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("signupform: store %s: %w", kv[0], err)
		}
	}
	return nil
}

// SessionRevoker ends a server-side session. HTTPClient implements it.
type SessionRevoker interface {
	Logout(ctx context.Context, refreshToken string) error
}

// SignOut revokes the stored session on the server, then clears it locally. The local keys are
// removed even when the server call fails; that error is returned afterwards.
func SignOut(ctx context.Context, api SessionRevoker, s Storage) error {
	refresh, ok, err := s.Get(KeyRefreshToken)
	if err != nil {
		return err
	}
	var remote error
	if ok && refresh != "" {
		remote = api.Logout(ctx, refresh)
	}
	if err := ClearSession(s); err != nil {
		return err
	}
	return remote
}

// ClearSession removes the keys written by PersistSession.
func ClearSession(s Storage) error {
	var errs []error
	for _, k := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
		if err := s.Delete(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryStorage keeps values in memory.
type MemoryStorage struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// Snapshot returns a copy of the stored map.
func (s *MemoryStorage) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// FileStorage keeps values in a JSON object on disk, rewritten atomically at 0600.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("signupform: parse %s: %w", s.path, err)
	}
	return m, nil
}

func (s *FileStorage) save(m map[string]string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = value
	return s.save(m)
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.save(m)
}
