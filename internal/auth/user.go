// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// User is a registered account. PasswordHash is always a salted one-way hash.
type User struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	// Profile holds any extra registration fields. It is stored as given.
	Profile   map[string]any
	CreatedAt time.Time
}

// NewUser creates a User with a fresh ID. The username is kept byte-for-byte;
// uniqueness is case-sensitive.
func NewUser(username, passwordHash string, profile map[string]any) *User {
	if profile == nil {
		profile = map[string]any{}
	}
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		Profile:      profile,
		CreatedAt:    time.Now().UTC(),
	}
}

// UserRepository is the credential store.
type UserRepository interface {
	// GetByUsername returns the user with the exact username.
	// Returns an error wrapping ErrNotFound if there is none.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Create stores a new user.
	// Returns an error wrapping ErrUsernameTaken if the username exists.
	Create(ctx context.Context, user *User) error
}
