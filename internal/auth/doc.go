// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides registration and login for authkeep.
//
// # Domain Types
//
// A User is created with NewUser, which assigns a ULID and keeps the
// username exactly as given. Repository implementations (see
// internal/auth/postgres) enforce case-sensitive username uniqueness and
// report it with ErrUsernameTaken.
//
// # Services
//
// Service composes a UserRepository, a PasswordHasher (BcryptHasher, cost
// DefaultBcryptCost) and a TokenIssuer (HS256, DefaultTokenTTL):
//   - Register hashes the password and stores the user
//   - Login verifies the password and returns a signed token
//
// # Errors
//
// Every error returned by Service carries exactly one Kind. Match with
// KindOf or errors.Is against ErrConfiguration, ErrDuplicateUsername,
// ErrInvalidCredentials, ErrPersistence and ErrInternal. PublicMessage
// returns text that is safe to send to a client.
package auth
