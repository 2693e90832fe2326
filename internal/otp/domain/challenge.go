package domain

import "time"

// Challenge is the live one-time code for an email address (otp_challenges table).
// There is at most one per email; only the hash of the code is stored.
type Challenge struct {
	ID           string
	Email        string
	CodeHash     string
	ExpiresAt    time.Time
	AttemptCount int
	LastSentAt   time.Time
	CreatedAt    time.Time
}

// Expired reports whether the code can no longer be used at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Exhausted reports whether maxAttempts wrong codes have been submitted.
func (c *Challenge) Exhausted(maxAttempts int) bool {
	return maxAttempts > 0 && c.AttemptCount >= maxAttempts
}

// CanResend reports whether a new code may be dispatched at now.
func (c *Challenge) CanResend(now time.Time, cooldown time.Duration) bool {
	return !now.Before(c.LastSentAt.Add(cooldown))
}

// RetryAfter returns how long until CanResend becomes true; zero if it already is.
func (c *Challenge) RetryAfter(now time.Time, cooldown time.Duration) time.Duration {
	d := c.LastSentAt.Add(cooldown).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
