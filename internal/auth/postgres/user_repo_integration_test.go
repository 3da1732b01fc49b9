// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"errors"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authkeep/internal/auth"
	"github.com/holomush/authkeep/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var repo *postgres.UserRepository

	BeforeEach(func() {
		repo = postgres.NewUserRepository(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE users`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("stores and loads a user with its profile", func() {
		user := auth.NewUser("alice", "$2a$10$hash", map[string]any{"email": "alice@example.com"})
		Expect(repo.Create(ctx, user)).To(Succeed())

		stored, err := repo.GetByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ID).To(Equal(user.ID))
		Expect(stored.PasswordHash).To(Equal("$2a$10$hash"))
		Expect(stored.Profile).To(HaveKeyWithValue("email", "alice@example.com"))
	})

	It("rejects a duplicate username", func() {
		Expect(repo.Create(ctx, auth.NewUser("alice", "h1", nil))).To(Succeed())

		err := repo.Create(ctx, auth.NewUser("alice", "h2", nil))
		Expect(err).To(MatchError(auth.ErrUsernameTaken))
	})

	It("treats usernames case-sensitively", func() {
		Expect(repo.Create(ctx, auth.NewUser("alice", "h1", nil))).To(Succeed())
		Expect(repo.Create(ctx, auth.NewUser("Alice", "h2", nil))).To(Succeed())

		_, err := repo.GetByUsername(ctx, "ALICE")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("reports a missing user as not found", func() {
		_, err := repo.GetByUsername(ctx, "ghost")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("lets exactly one concurrent registration win", func() {
		var created, taken atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				err := repo.Create(ctx, auth.NewUser("race", "h", nil))
				switch {
				case err == nil:
					created.Add(1)
				case errors.Is(err, auth.ErrUsernameTaken):
					taken.Add(1)
				}
			}()
		}
		wg.Wait()
		Expect(created.Load()).To(Equal(int32(1)))
		Expect(taken.Load()).To(Equal(int32(9)))
	})
})
