// Package audit records security-relevant auth actions to the audit_logs table.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/audit/domain"
	auditrepo "github.com/dip-aaa/web-project-sub002/internal/audit/repository"
)

type ipKey struct{}

// WithClientIP returns ctx carrying the client IP for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// ClientIP returns the IP set by WithClientIP, or "unknown".
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ipKey{}).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}

// AuditLogger writes a single audit event with explicit action/resource. Used by auth code paths.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource string, metadata map[string]string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	log  *zap.Logger
	now  func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo. log may be nil.
func NewLogger(repo auditrepo.Repository, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, log: log, now: time.Now}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource string, metadata map[string]string) {
	if l == nil || l.repo == nil {
		return
	}
	var meta string
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			meta = string(b)
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ClientIP(ctx),
		Metadata:  meta,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn("audit: failed to log event", zap.String("action", action), zap.String("resource", resource), zap.Error(err))
	}
}
