// Package validation holds the signup input rules shared by the API server and the
// signup form controller, so both sides reject the same drafts with the same messages.
package validation

import (
	"regexp"
	"strings"
)

// User-facing messages.
const (
	MsgRequiredFields   = "Please fill in all required fields"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordLength   = "Password must be at least 8 characters long"
	MsgPasswordUpper    = "Password must contain at least one uppercase letter"
	MsgPasswordLower    = "Password must contain at least one lowercase letter"
	MsgPasswordDigit    = "Password must contain at least one number"
	MsgPasswordMismatch = "Passwords do not match"
	MsgInvalidOTP       = "Please enter a valid 6-digit OTP"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// OTPLength is the number of digits in an emailed code.
const OTPLength = 6

// Error is a client-correctable validation failure. Error() is safe to show to the user.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func fail(field, msg string) *Error { return &Error{Field: field, Message: msg} }

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

// Required returns an error for the first blank field, checked in order.
func Required(fields ...Field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			return fail(f.Name, MsgRequiredFields)
		}
	}
	return nil
}

// Field is a named value checked by Required.
type Field struct {
	Name  string
	Value string
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Email checks the address format and that its domain matches one of allowedSuffixes.
// An empty allowedSuffixes skips the domain check.
func Email(email string, allowedSuffixes []string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return fail("email", MsgRequiredFields)
	}
	if !emailPattern.MatchString(email) {
		return fail("email", MsgInvalidEmail)
	}
	if len(allowedSuffixes) == 0 {
		return nil
	}
	for _, s := range allowedSuffixes {
		if HasDomainSuffix(email, s) {
			return nil
		}
	}
	return fail("email", DomainMessage(allowedSuffixes))
}

// DomainMessage is the message shown when an email is outside the institution domains.
func DomainMessage(allowedSuffixes []string) string {
	if len(allowedSuffixes) == 0 {
		return MsgInvalidEmail
	}
	return "Please use your college email address ending with @" + strings.TrimLeft(allowedSuffixes[0], "@.")
}

// HasDomainSuffix reports whether the domain part of email equals suffix or is a subdomain of it.
// Comparison is case-insensitive; a leading "@" or "." on suffix is ignored.
func HasDomainSuffix(email, suffix string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	suffix = strings.TrimLeft(strings.ToLower(strings.TrimSpace(suffix)), "@.")
	if suffix == "" || domain == "" {
		return false
	}
	return domain == suffix || strings.HasSuffix(domain, "."+suffix)
}

// EmailDomain returns the lower-cased part after the last "@", or "" when there is none.
func EmailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// Password enforces the password policy: at least 8 characters with an uppercase letter,
// a lowercase letter and a digit.
func Password(password string) error {
	if len(password) < MinPasswordLength {
		return fail("password", MsgPasswordLength)
	}
	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		}
	}
	if !hasUpper {
		return fail("password", MsgPasswordUpper)
	}
	if !hasLower {
		return fail("password", MsgPasswordLower)
	}
	if !hasNumber {
		return fail("password", MsgPasswordDigit)
	}
	return nil
}

// PasswordsMatch checks the confirmation field.
func PasswordsMatch(password, confirm string) error {
	if password != confirm {
		return fail("confirmPassword", MsgPasswordMismatch)
	}
	return nil
}

// OTP checks that code is exactly six ASCII digits. Surrounding whitespace is not accepted.
func OTP(code string) error {
	if !otpPattern.MatchString(code) {
		return fail("otp", MsgInvalidOTP)
	}
	return nil
}
