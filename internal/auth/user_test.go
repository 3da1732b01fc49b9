// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"

	"github.com/holomush/authkeep/internal/auth"
)

func TestNewUser(t *testing.T) {
	t.Run("assigns id and keeps username", func(t *testing.T) {
		u := auth.NewUser("Alice", "hash", map[string]any{"email": "alice@example.com"})
		assert.NotEqual(t, ulid.ULID{}, u.ID)
		assert.Equal(t, "Alice", u.Username)
		assert.Equal(t, "hash", u.PasswordHash)
		assert.Equal(t, "alice@example.com", u.Profile["email"])
		assert.False(t, u.CreatedAt.IsZero())
	})

	t.Run("nil profile becomes empty", func(t *testing.T) {
		u := auth.NewUser("bob", "hash", nil)
		assert.NotNil(t, u.Profile)
		assert.Empty(t, u.Profile)
	})

	t.Run("ids are unique", func(t *testing.T) {
		assert.NotEqual(t, auth.NewUser("a", "h", nil).ID, auth.NewUser("a", "h", nil).ID)
	})
}
