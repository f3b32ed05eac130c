// Package users registers and authenticates accounts.
package users

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSignup      = errors.New("invalid signup")
)

const (
	// PasswordCost is the bcrypt work factor for new accounts.
	PasswordCost      = 10
	minPasswordLength = 6
	maxPasswordLength = 72 // bcrypt ignores anything longer
)

// User is an account. PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NormalizeEmail lower-cases and trims an address so lookups match.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (in SignupInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if addr, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil || addr.Address != strings.TrimSpace(in.Email) {
		problems = append(problems, "a valid email is required")
	}
	if n := len(in.Password); n < minPasswordLength || n > maxPasswordLength {
		problems = append(problems, "password must be between 6 and 72 characters")
	}
	if len(problems) > 0 {
		return errors.Join(ErrInvalidSignup, errors.New(strings.Join(problems, "; ")))
	}
	return nil
}
