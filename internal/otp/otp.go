// Package otp generates and checks the one-time codes mailed during signup.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/dip-aaa/web-project-sub002/internal/security"
)

// Digits is the length of every generated code.
const Digits = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateOTP returns a uniformly random 6-digit code, zero-padded (e.g. "004213").
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}

// HashOTP returns the value stored in otp_challenges.code_hash.
func HashOTP(code string) string {
	return security.HashSecret(code)
}

// OTPEqual compares the provided code against a stored hash in constant time.
func OTPEqual(code, storedHash string) bool {
	return security.SecretHashEqual(code, storedHash)
}
