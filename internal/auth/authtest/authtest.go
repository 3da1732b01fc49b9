// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory auth dependencies for tests.
package authtest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/authkeep/internal/auth"
)

// Secret is the signing secret used by NewService.
const Secret = "authtest-signing-secret"

// MemoryUsers is an auth.UserRepository with a case-sensitive unique username index.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

// NewMemoryUsers creates an empty repository.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]*auth.User)}
}

// GetByUsername returns a copy of the stored user or auth.ErrNotFound.
func (m *MemoryUsers) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

// Create stores user or returns auth.ErrUsernameTaken.
func (m *MemoryUsers) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return auth.ErrUsernameTaken
	}
	userCopy := *user
	m.users[user.Username] = &userCopy
	return nil
}

// Len returns the number of stored users.
func (m *MemoryUsers) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// Get returns the stored user without copying, for assertions.
func (m *MemoryUsers) Get(username string) (*auth.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	return u, ok
}

var _ auth.UserRepository = (*MemoryUsers)(nil)

// NewHasher returns a bcrypt hasher at the minimum cost.
func NewHasher(t testing.TB) *auth.BcryptHasher {
	t.Helper()
	h, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// NewService wires a Service over users with a fast hasher and Secret.
func NewService(t testing.TB, users auth.UserRepository) (*auth.Service, *auth.TokenIssuer) {
	t.Helper()
	tokens := auth.NewTokenIssuer(auth.TokenConfig{Secret: Secret, Issuer: "authkeep"})
	svc, err := auth.NewAuthService(users, NewHasher(t), tokens)
	require.NoError(t, err)
	return svc, tokens
}
