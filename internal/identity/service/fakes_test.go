package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	catalogdomain "github.com/dip-aaa/web-project-sub002/internal/catalog/domain"
	"github.com/dip-aaa/web-project-sub002/internal/devotp"
	identitydomain "github.com/dip-aaa/web-project-sub002/internal/identity/domain"
	"github.com/dip-aaa/web-project-sub002/internal/mail"
	otpdomain "github.com/dip-aaa/web-project-sub002/internal/otp/domain"
	"github.com/dip-aaa/web-project-sub002/internal/policy/engine"
	"github.com/dip-aaa/web-project-sub002/internal/security"
	sessiondomain "github.com/dip-aaa/web-project-sub002/internal/session/domain"
	userdomain "github.com/dip-aaa/web-project-sub002/internal/user/domain"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	byEmail map[string]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*userdomain.User{}, byEmail: map[string]*userdomain.User{}}
}

func (r *memUserRepo) put(u *userdomain.User) {
	c := *u
	r.byID[u.ID] = &c
	r.byEmail[u.Email] = &c
}

func (r *memUserRepo) get(m map[string]*userdomain.User, k string) *userdomain.User {
	if u, ok := m[k]; ok {
		c := *u
		return &c
	}
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(r.byID, id), nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(r.byEmail, email), nil
}

func (r *memUserRepo) Update(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return errors.New("no such user")
	}
	r.put(u)
	return nil
}

func (r *memUserRepo) Activate(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.Status != userdomain.UserStatusPending {
		return false, nil
	}
	u.Status = userdomain.UserStatusActive
	return true, nil
}

type memIdentityRepo struct {
	mu sync.Mutex
	m  map[string]*identitydomain.Identity
}

func (r *memIdentityRepo) GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.m {
		if i.UserID == userID && i.Provider == provider {
			c := *i
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memIdentityRepo) Create(ctx context.Context, i *identitydomain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *i
	r.m[i.ID] = &c
	return nil
}

func (r *memIdentityRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.m[id]; ok {
		i.PasswordHash = hash
	}
	return nil
}

type memSignupStore struct {
	users *memUserRepo
	ids   *memIdentityRepo
	err   error
}

func (s *memSignupStore) CreatePendingUser(ctx context.Context, u *userdomain.User, i *identitydomain.Identity) error {
	if s.err != nil {
		return s.err
	}
	s.users.mu.Lock()
	s.users.put(u)
	s.users.mu.Unlock()
	return s.ids.Create(ctx, i)
}

type memSessionRepo struct {
	mu        sync.Mutex
	m         map[string]*sessiondomain.Session
	createErr error
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	s2 := *s
	r.m[s.ID] = &s2
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		t := time.Now()
		s.RevokedAt = &t
	}
	return nil
}

func (r *memSessionRepo) RevokeAllSessionsByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := time.Now()
	for _, s := range r.m {
		if s.UserID == userID {
			s.RevokedAt = &t
		}
	}
	return nil
}

func (r *memSessionRepo) UpdateRefreshToken(ctx context.Context, sessionID, jti, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[sessionID]; ok {
		s.RefreshJti = jti
		s.RefreshTokenHash = hash
	}
	return nil
}

func (r *memSessionRepo) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.LastSeenAt = &at
	}
	return nil
}

type memOTPRepo struct {
	mu sync.Mutex
	m  map[string]*otpdomain.Challenge
}

func (r *memOTPRepo) Upsert(ctx context.Context, c *otpdomain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c2 := *c
	c2.AttemptCount = 0
	r.m[c.Email] = &c2
	return nil
}

func (r *memOTPRepo) GetByEmail(ctx context.Context, email string) (*otpdomain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[email]; ok {
		c2 := *c
		return &c2, nil
	}
	return nil, nil
}

func (r *memOTPRepo) IncrementAttempts(ctx context.Context, email string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[email]
	if !ok {
		return 0, nil
	}
	c.AttemptCount++
	return c.AttemptCount, nil
}

func (r *memOTPRepo) DeleteByEmail(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, email)
	return nil
}

type memColleges struct {
	list []catalogdomain.College
}

func (c *memColleges) ListColleges(ctx context.Context) ([]catalogdomain.College, error) {
	return c.list, nil
}

func (c *memColleges) CollegeByDomain(ctx context.Context, domain string) (*catalogdomain.College, error) {
	for _, col := range c.list {
		if domain == col.EmailDomain || strings.HasSuffix(domain, "."+col.EmailDomain) {
			c2 := col
			return &c2, nil
		}
	}
	return nil, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, m mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type auditEntry struct {
	userID, action, resource string
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAudit) LogEvent(ctx context.Context, userID, action, resource string, metadata map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{userID, action, resource})
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.action
	}
	return out
}

type fixture struct {
	svc      *AuthService
	users    *memUserRepo
	idents   *memIdentityRepo
	signups  *memSignupStore
	sessions *memSessionRepo
	otps     *memOTPRepo
	mailer   *fakeMailer
	audit    *recordingAudit
	devOTP   *devotp.MemoryStore
	tokens   *security.TokenProvider
	now      time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	policy, err := engine.NewOPAEvaluator(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	users := newMemUserRepo()
	idents := &memIdentityRepo{m: map[string]*identitydomain.Identity{}}
	f := &fixture{
		users:    users,
		idents:   idents,
		signups:  &memSignupStore{users: users, ids: idents},
		sessions: &memSessionRepo{m: map[string]*sessiondomain.Session{}},
		otps:     &memOTPRepo{m: map[string]*otpdomain.Challenge{}},
		mailer:   &fakeMailer{},
		audit:    &recordingAudit{},
		devOTP:   devotp.NewMemoryStore(),
		tokens:   tokens,
		now:      time.Now().UTC(),
	}
	f.svc = NewAuthService(Deps{
		Users:      f.users,
		Identities: f.idents,
		Signups:    f.signups,
		Sessions:   f.sessions,
		OTPs:       f.otps,
		Colleges:   &memColleges{list: []catalogdomain.College{{ID: "khwopa", Name: "Khwopa College of Engineering", EmailDomain: "khwopa.edu.np"}}},
		Policy:     policy,
		Hasher:     security.NewHasher(4),
		Tokens:     tokens,
		Mailer:     f.mailer,
		DevOTP:     f.devOTP,
		Audit:      f.audit,
	}, Options{
		AllowedDomains: []string{"khwopa.edu.np"},
		OTPTTL:         10 * time.Minute,
		OTPMaxAttempts: 3,
		ResendCooldown: time.Minute,
		RefreshTTL:     24 * time.Hour,
	})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func validSignup() SignupInput {
	return SignupInput{Name: "Asha", Email: "Asha@Khwopa.edu.np", Password: "Abcd1234", Department: "Computer"}
}

// signupAndVerify registers validSignup and verifies it with the dev code.
func (f *fixture) signupAndVerify(t *testing.T) *AuthResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), validSignup())
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	out, err := f.svc.VerifyOTP(context.Background(), res.Email, res.DevOTP)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	return out
}
