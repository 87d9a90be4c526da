package user

import (
	"errors"
	"time"
)

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// nil for accounts created through Google sign-in
	PasswordHash *string   `json:"-"`
	GoogleID     *string   `json:"-"`
	IsGoogleUser bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

var ErrNotFound = errors.New("user not found")
