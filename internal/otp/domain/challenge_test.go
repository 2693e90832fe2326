package domain

import (
	"testing"
	"time"
)

func TestChallenge_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &Challenge{ExpiresAt: now.Add(time.Minute)}
	if c.Expired(now) {
		t.Error("challenge expiring in a minute should not be expired")
	}
	if !c.Expired(now.Add(time.Minute)) {
		t.Error("challenge should be expired at ExpiresAt")
	}
}

func TestChallenge_Exhausted(t *testing.T) {
	testCases := []struct {
		attempts, max int
		want          bool
	}{
		{0, 5, false},
		{4, 5, false},
		{5, 5, true},
		{9, 5, true},
		{9, 0, false},
	}
	for _, tc := range testCases {
		c := &Challenge{AttemptCount: tc.attempts}
		if got := c.Exhausted(tc.max); got != tc.want {
			t.Errorf("Exhausted(attempts=%d, max=%d) = %v, want %v", tc.attempts, tc.max, got, tc.want)
		}
	}
}

func TestChallenge_CanResend(t *testing.T) {
	sent := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &Challenge{LastSentAt: sent}
	if c.CanResend(sent.Add(30*time.Second), time.Minute) {
		t.Error("resend within cooldown should be refused")
	}
	if got := c.RetryAfter(sent.Add(30*time.Second), time.Minute); got != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", got)
	}
	if !c.CanResend(sent.Add(time.Minute), time.Minute) {
		t.Error("resend after cooldown should be allowed")
	}
	if got := c.RetryAfter(sent.Add(2*time.Minute), time.Minute); got != 0 {
		t.Errorf("RetryAfter after cooldown = %v, want 0", got)
	}
}
