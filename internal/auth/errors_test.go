// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/authkeep/pkg/errutil"
)

func TestKind_StringAndCode(t *testing.T) {
	tests := []struct {
		kind Kind
		name string
		code string
	}{
		{KindConfiguration, "ConfigurationError", "AUTH_CONFIGURATION"},
		{KindDuplicateUsername, "DuplicateUsername", "AUTH_DUPLICATE_USERNAME"},
		{KindInvalidCredentials, "InvalidCredentials", "AUTH_INVALID_CREDENTIALS"},
		{KindPersistence, "PersistenceError", "AUTH_PERSISTENCE"},
		{KindInternal, "InternalError", "AUTH_INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.code, tt.kind.Code())
		})
	}
}

func TestClassify(t *testing.T) {
	cause := errors.New("connection reset")
	err := classify(KindPersistence, ErrPersistence.Message, cause, "operation", "create user")

	errutil.AssertErrorCode(t, err, "AUTH_PERSISTENCE")
	errutil.AssertErrorContext(t, err, "operation", "create user")
	errutil.AssertErrorContext(t, err, "kind", "PersistenceError")
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInternal)
	assert.Equal(t, "credential store failure", PublicMessage(err))
}

func TestKindOf(t *testing.T) {
	t.Run("nil is no kind", func(t *testing.T) {
		assert.Equal(t, kindNone, KindOf(nil))
	})

	t.Run("unclassified errors are internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	})

	t.Run("survives further wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", classify(KindInvalidCredentials, ErrInvalidCredentials.Message, nil))
		assert.Equal(t, KindInvalidCredentials, KindOf(err))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestPublicMessage_HidesCause(t *testing.T) {
	err := classify(KindInternal, ErrInternal.Message, errors.New("pq: password authentication failed for user admin"))
	assert.Equal(t, "internal error", PublicMessage(err))
	assert.Equal(t, "internal error", PublicMessage(errors.New("raw")))
}
