package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/dip-aaa/web-project-sub002/internal/config"
	"github.com/dip-aaa/web-project-sub002/internal/googleauth"
)

// New returns the Sender selected by MAIL_DRIVER.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (Sender, error) {
	switch cfg.MailDriver {
	case "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	case "gmail":
		ts, err := googleauth.TokenSource(ctx, cfg.GmailCredentialsFile, cfg.GmailTokenFile)
		if err != nil {
			return nil, fmt.Errorf("mail: gmail driver needs setup-gmail-auth first: %w", err)
		}
		return NewGmailSender(ctx, cfg.MailFrom, option.WithTokenSource(ts))
	case "filesystem", "":
		return NewFilesystemSender(cfg.MailOutboxDir, log)
	default:
		return nil, fmt.Errorf("mail: unknown driver %q", cfg.MailDriver)
	}
}
