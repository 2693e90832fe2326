package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender sends through the Gmail API as the account that granted consent.
type GmailSender struct {
	svc  *gmail.Service
	from string
}

// NewGmailSender builds the Gmail client. Pass option.WithTokenSource with the token from
// setup-gmail-auth.
func NewGmailSender(ctx context.Context, from string, opts ...option.ClientOption) (*GmailSender, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: gmail service: %w", err)
	}
	return &GmailSender{svc: svc, from: from}, nil
}

func (s *GmailSender) Send(ctx context.Context, m Message) error {
	msg, err := compose(s.from, m)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return fmt.Errorf("mail: encode: %w", err)
	}
	raw := base64.URLEncoding.EncodeToString(buf.Bytes())
	if _, err := s.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mail: gmail send: %w", err)
	}
	return nil
}
