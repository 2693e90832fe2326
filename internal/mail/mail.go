// Package mail renders and delivers the signup verification email.
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// OTPSubject is the subject line of the verification email.
const OTPSubject = "Your verification code"

var otpText = template.Must(template.New("otp.txt").Parse(`Hi {{.Name}},

Your verification code is {{.Code}}. It expires in {{.Minutes}} minutes.

If you did not sign up, you can ignore this email.
`))

var otpHTML = htmltemplate.Must(htmltemplate.New("otp.html").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hi {{.Name}},</p>
<p>Your verification code is</p>
<p style="font-size:28px;letter-spacing:6px;font-weight:bold">{{.Code}}</p>
<p>It expires in {{.Minutes}} minutes.</p>
<p style="color:#666">If you did not sign up, you can ignore this email.</p>
</body></html>
`))

// RenderOTP builds the verification email for code, valid for ttl.
func RenderOTP(to, name, code string, ttl time.Duration) (Message, error) {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	data := struct {
		Name    string
		Code    string
		Minutes int
	}{Name: name, Code: code, Minutes: minutes}

	var text, html bytes.Buffer
	if err := otpText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("mail: render text: %w", err)
	}
	if err := otpHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mail: render html: %w", err)
	}
	return Message{To: to, Subject: OTPSubject, Text: text.String(), HTML: html.String()}, nil
}

// compose converts m into a go-mail message with a plain-text body and HTML alternative.
func compose(from string, m Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mail: from %q: %w", from, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("mail: to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, m.HTML)
	}
	return msg, nil
}
