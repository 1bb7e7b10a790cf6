// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/holosession/internal/provider"
	"github.com/holomush/holosession/internal/provider/local"
	"github.com/holomush/holosession/internal/provider/local/postgres"
	"github.com/holomush/holosession/internal/session"
)

var fastParams = local.Argon2Params{Time: 1, Memory: 64, Threads: 1, SaltLen: 16, KeyLen: 32}

var _ = Describe("Migrator", func() {
	It("leaves the schema at the latest version with nothing pending", func() {
		migrator, err := postgres.NewMigrator(env.url)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = migrator.Close() }()

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
		Expect(dirty).To(BeFalse())

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
	})
})

var _ = Describe("AccountRepository", func() {
	var (
		repo *postgres.AccountRepository
		now  time.Time
	)

	BeforeEach(func() {
		env.truncate()
		repo = postgres.NewAccountRepository(env.pool)
		now = time.Now().UTC().Truncate(time.Microsecond)
	})

	It("looks accounts up by email regardless of case", func() {
		account, err := local.NewAccount("Mixed@Example.com", "$argon2id$hash", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(env.ctx, account)).To(Succeed())

		got, err := repo.GetByEmail(env.ctx, "mixed@example.COM")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(account.ID))
		Expect(got.LockedUntil).To(BeNil())
	})

	It("rejects a second account with the same email", func() {
		first, err := local.NewAccount("dup@example.com", "$argon2id$hash", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(env.ctx, first)).To(Succeed())

		second, err := local.NewAccount("DUP@example.com", "$argon2id$other", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(env.ctx, second)).To(MatchError(local.ErrDuplicateEmail))
	})

	It("persists lockout and clears it on password change", func() {
		account, err := local.NewAccount("locked@example.com", "$argon2id$hash", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(env.ctx, account)).To(Succeed())

		for range local.LockoutThreshold {
			account.RecordFailure(now)
		}
		Expect(repo.Update(env.ctx, account)).To(Succeed())

		locked, err := repo.GetByID(env.ctx, account.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(locked.IsLocked(now)).To(BeTrue())

		Expect(repo.UpdatePassword(env.ctx, account.ID, "$argon2id$new", now.Add(time.Minute))).To(Succeed())
		cleared, err := repo.GetByID(env.ctx, account.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(cleared.PasswordHash).To(Equal("$argon2id$new"))
		Expect(cleared.FailedAttempts).To(BeZero())
		Expect(cleared.LockedUntil).To(BeNil())
	})
})

var _ = Describe("ResetRepository", func() {
	It("finds, expires and revokes reset codes", func() {
		env.truncate()
		accounts := postgres.NewAccountRepository(env.pool)
		resets := postgres.NewResetRepository(env.pool)
		now := time.Now().UTC().Truncate(time.Microsecond)

		account, err := local.NewAccount("reset@example.com", "$argon2id$hash", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(accounts.Create(env.ctx, account)).To(Succeed())

		fresh, err := local.NewPasswordReset(account.ID, "fresh-hash", now, now.Add(time.Hour))
		Expect(err).NotTo(HaveOccurred())
		stale, err := local.NewPasswordReset(account.ID, "stale-hash", now.Add(-2*time.Hour), now.Add(-time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(resets.Create(env.ctx, fresh)).To(Succeed())
		Expect(resets.Create(env.ctx, stale)).To(Succeed())

		got, err := resets.GetByTokenHash(env.ctx, "fresh-hash")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(fresh.ID))

		Expect(resets.DeleteExpired(env.ctx, now)).To(Equal(int64(1)))

		Expect(resets.DeleteByAccount(env.ctx, account.ID)).To(Succeed())
		_, err = resets.GetByTokenHash(env.ctx, "fresh-hash")
		Expect(err).To(MatchError(local.ErrNotFound))
	})
})

var _ = Describe("Local provider on Postgres", func() {
	var ctrl *session.Controller

	BeforeEach(func() {
		env.truncate()
		p, err := local.NewProvider(
			postgres.NewAccountRepository(env.pool),
			postgres.NewResetRepository(env.pool),
			local.WithHasher(local.NewArgon2idHasherWithParams(fastParams)),
		)
		Expect(err).NotTo(HaveOccurred())

		ctrl, err = session.NewController(p)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(ctrl.Close)
	})

	It("signs up, signs out and signs back in", func() {
		Expect(ctrl.Signup(env.ctx, " pg@example.com ", "hunter2pass")).To(Succeed())
		Expect(ctrl.Identity()).NotTo(BeNil())

		Expect(ctrl.Logout(env.ctx)).To(Succeed())
		Expect(ctrl.Identity()).To(BeNil())

		Expect(ctrl.Login(env.ctx, "PG@example.com", "hunter2pass")).To(Succeed())
		Expect(ctrl.State().Status()).To(Equal(session.StatusAuthenticated))
	})

	It("reports the provider message for a wrong password", func() {
		Expect(ctrl.Signup(env.ctx, "pg@example.com", "hunter2pass")).To(Succeed())
		Expect(ctrl.Logout(env.ctx)).To(Succeed())

		err := ctrl.Login(env.ctx, "pg@example.com", "wrongpass1")
		var authErr *session.AuthError
		Expect(errors.As(err, &authErr)).To(BeTrue())
		Expect(authErr.Message).To(Equal(provider.Message(provider.CodeInvalidCredential)))
	})
})
