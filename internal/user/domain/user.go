package domain

import (
	"errors"
	"time"
)

// User is a marketplace account. It starts pending and becomes active once the
// signup code mailed to Email is verified.
type User struct {
	ID         string
	Email      string
	Name       string
	Phone      string
	Department string
	CollegeID  string // empty when the email domain is not a seeded college
	Status     UserStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate checks the user before persistence. An empty status defaults to pending.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	switch u.Status {
	case "":
		u.Status = UserStatusPending
	case UserStatusPending, UserStatusActive, UserStatusDisabled:
	default:
		return errors.New("unknown user status")
	}
	return nil
}
