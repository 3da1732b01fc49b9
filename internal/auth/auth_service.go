// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RegisteredMessage is the confirmation returned by a successful Register.
const RegisteredMessage = "User created successfully"

var tracer = otel.Tracer("github.com/holomush/authkeep/internal/auth")

// Registration is a request to create a user.
type Registration struct {
	Username string
	Password string
	// Profile carries any other registration fields unchanged.
	Profile map[string]any
}

// RegisterResult confirms a registration. It never carries a token.
type RegisterResult struct {
	Message string `json:"message"`
}

// LoginResult carries the signed session token.
type LoginResult struct {
	Token string `json:"token"`
}

// Service provides registration and login.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens *TokenIssuer
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new Service using the default logger.
func NewAuthService(users UserRepository, hasher PasswordHasher, tokens *TokenIssuer) (*Service, error) {
	return NewAuthServiceWithLogger(users, hasher, tokens, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service with an explicit logger.
func NewAuthServiceWithLogger(users UserRepository, hasher PasswordHasher, tokens *TokenIssuer, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}, nil
}

// Register hashes the password and stores a new user.
func (s *Service) Register(ctx context.Context, reg Registration) (*RegisterResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer span.End()

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, s.fail(ctx, span, classify(KindInternal, ErrInternal.Message, err,
			"operation", "hash password"))
	}

	user := NewUser(reg.Username, hash, reg.Profile)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, s.fail(ctx, span, classify(KindDuplicateUsername, ErrDuplicateUsername.Message, err,
				"username", reg.Username))
		}
		return nil, s.fail(ctx, span, classify(KindPersistence, ErrPersistence.Message, err,
			"operation", "create user"))
	}

	span.SetAttributes(attribute.String("auth.user_id", user.ID.String()))
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return &RegisterResult{Message: RegisteredMessage}, nil
}

// Login verifies the credentials and returns a signed token.
// An unknown username and a wrong password fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	// Checked before the lookup so a missing secret cannot reveal whether a user exists.
	if !s.tokens.Configured() {
		return nil, s.fail(ctx, span, classify(KindConfiguration, ErrConfiguration.Message, nil))
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, s.fail(ctx, span, classify(KindPersistence, ErrPersistence.Message, err,
				"operation", "get user by username"))
		}
		// Spend the same bcrypt time as a real comparison.
		//nolint:errcheck // result is irrelevant, the login fails either way
		_, _ = s.hasher.Verify(password, s.dummyPasswordHash())
		s.logger.DebugContext(ctx, "login rejected", "username", username)
		return nil, s.fail(ctx, span, classify(KindInvalidCredentials, ErrInvalidCredentials.Message, nil))
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, s.fail(ctx, span, classify(KindInternal, ErrInternal.Message, err,
			"operation", "verify password", "user_id", user.ID.String()))
	}
	if !ok {
		s.logger.DebugContext(ctx, "login rejected", "username", username)
		return nil, s.fail(ctx, span, classify(KindInvalidCredentials, ErrInvalidCredentials.Message, nil))
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, s.fail(ctx, span, classify(KindInternal, ErrInternal.Message, err,
			"operation", "issue token", "user_id", user.ID.String()))
	}

	span.SetAttributes(attribute.String("auth.user_id", user.ID.String()))
	return &LoginResult{Token: token}, nil
}

// dummyPasswordHash returns a hash of a random password, computed once with
// the service's own hasher so unknown-user logins cost the same as real ones.
func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			s.logger.Warn("dummy password generation failed", "error", err)
			return
		}
		hash, err := s.hasher.Hash(hex.EncodeToString(buf))
		if err != nil {
			s.logger.Warn("dummy password hash failed", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// fail records err on the span and logs the kinds that indicate a server-side problem.
func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	kind := KindOf(err)
	span.SetAttributes(attribute.String("auth.error_kind", kind.String()))
	switch kind {
	case KindPersistence, KindInternal, KindConfiguration:
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		s.logger.WarnContext(ctx, "auth operation failed", "kind", kind.String(), "error", err.Error())
	}
	return err
}
