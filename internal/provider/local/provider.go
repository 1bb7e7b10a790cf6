// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package local

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holosession/internal/provider"
	"github.com/holomush/holosession/internal/provider/sessionstore"
	"github.com/holomush/holosession/internal/session"
	"github.com/holomush/holosession/internal/validation"
	"github.com/holomush/holosession/pkg/errutil"
)

// Provider is an identity provider over local account storage.
type Provider struct {
	accounts AccountRepository
	resets   ResetRepository
	hasher   PasswordHasher
	mailer   Mailer
	store    sessionstore.Store
	clock    clockwork.Clock
	logger   *slog.Logger

	// dummyHash is verified when an account does not exist, so lookups of
	// unknown addresses cost the same as real ones.
	dummyHash string

	// notifyMu serializes state changes with their delivery.
	notifyMu  sync.Mutex
	mu        sync.Mutex
	current   *User
	listeners map[uint64]func(session.Identity)
	nextID    uint64
}

// Option configures a Provider during construction.
type Option func(*Provider)

// WithHasher sets the password hasher. Defaults to NewArgon2idHasher().
func WithHasher(h PasswordHasher) Option {
	return func(p *Provider) { p.hasher = h }
}

// WithMailer sets how reset codes are delivered. Defaults to a LogMailer.
func WithMailer(m Mailer) Option {
	return func(p *Provider) { p.mailer = m }
}

// WithSessionStore persists the signed-in account across restarts.
// Call Restore to load it.
func WithSessionStore(s sessionstore.Store) Option {
	return func(p *Provider) { p.store = s }
}

// WithClock sets the clock used for lockouts and reset expiry.
func WithClock(c clockwork.Clock) Option {
	return func(p *Provider) { p.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates a Provider. No one is signed in initially.
func NewProvider(accounts AccountRepository, resets ResetRepository, opts ...Option) (*Provider, error) {
	if accounts == nil {
		return nil, oops.Code("LOCAL_NIL_REPOSITORY").Errorf("account repository is required")
	}
	if resets == nil {
		return nil, oops.Code("LOCAL_NIL_REPOSITORY").Errorf("reset repository is required")
	}
	p := &Provider{
		accounts:  accounts,
		resets:    resets,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
		listeners: make(map[uint64]func(session.Identity)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.hasher == nil {
		p.hasher = NewArgon2idHasher()
	}
	if p.mailer == nil {
		p.mailer = NewLogMailer(p.logger)
	}

	dummy, err := p.hasher.Hash(ulid.Make().String())
	if err != nil {
		return nil, oops.Code("LOCAL_INIT_FAILED").With("operation", "hash dummy password").Wrap(err)
	}
	p.dummyHash = dummy
	return p, nil
}

// persistedSession is the record kept in the session store.
type persistedSession struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// Restore signs in the account saved in the session store, if it still
// exists. It must be called before the first subscription.
func (p *Provider) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	var saved persistedSession
	ok, err := p.store.Load(&saved)
	if err != nil {
		return oops.Code("LOCAL_RESTORE_FAILED").Wrap(err)
	}
	if !ok {
		return nil
	}

	id, err := ulid.Parse(saved.AccountID)
	if err != nil {
		errutil.LogWarn(ctx, p.logger, "discarding unreadable saved session", err)
		return p.store.Clear()
	}
	account, err := p.accounts.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		p.logger.InfoContext(ctx, "saved session refers to a deleted account", "account_id", saved.AccountID)
		return p.store.Clear()
	}
	if err != nil {
		return oops.Code("LOCAL_RESTORE_FAILED").With("account_id", saved.AccountID).Wrap(err)
	}

	p.mu.Lock()
	p.current = account.User()
	p.mu.Unlock()
	return nil
}

// CurrentUser returns the signed-in user, or nil.
func (p *Provider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SubscribeToAuthChanges implements session.Provider. onChange is called
// with the current user before this method returns.
func (p *Provider) SubscribeToAuthChanges(onChange func(session.Identity)) func() {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = onChange
	current := p.current
	p.mu.Unlock()

	onChange(identityOf(current))

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// SignInWithCredentials implements session.Provider.
func (p *Provider) SignInWithCredentials(ctx context.Context, email, password string) error {
	if err := checkEmail(email); err != nil {
		return err
	}
	if password == "" {
		return provider.Reject(provider.CodeMissingPassword)
	}

	account, lookupErr := p.accounts.GetByEmail(ctx, NormalizeEmail(email))
	targetHash := p.dummyHash
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
	case !errors.Is(lookupErr, ErrNotFound):
		return oops.Code("LOCAL_LOGIN_FAILED").With("operation", "get account by email").Wrap(lookupErr)
	}

	// Always verify so unknown addresses take as long as known ones.
	valid, verifyErr := p.hasher.Verify(password, targetHash)
	if account == nil {
		return provider.Reject(provider.CodeInvalidCredential)
	}
	if verifyErr != nil {
		return oops.Code("LOCAL_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(verifyErr)
	}

	now := p.clock.Now()
	if account.IsLocked(now) {
		return provider.Reject(provider.CodeTooManyRequests)
	}
	if !valid {
		account.RecordFailure(now)
		if err := p.accounts.Update(ctx, account); err != nil {
			errutil.LogWarn(ctx, p.logger, "failed to record login failure", err,
				"account_id", account.ID.String())
		}
		if account.IsLocked(now) {
			p.logger.InfoContext(ctx, "account locked after repeated failures",
				"account_id", account.ID.String(), "failures", account.FailedAttempts)
			return provider.Reject(provider.CodeTooManyRequests)
		}
		return provider.Reject(provider.CodeInvalidCredential)
	}

	account.RecordSuccess(now)
	if p.hasher.NeedsUpgrade(account.PasswordHash) {
		if upgraded, err := p.hasher.Hash(password); err == nil {
			account.PasswordHash = upgraded
		}
	}
	// Login succeeds even if the bookkeeping update fails.
	if err := p.accounts.Update(ctx, account); err != nil {
		errutil.LogWarn(ctx, p.logger, "failed to reset login failures", err,
			"account_id", account.ID.String())
	}

	p.setCurrent(ctx, account.User())
	return nil
}

// CreateAccountWithCredentials implements session.Provider. The new
// account is signed in.
func (p *Provider) CreateAccountWithCredentials(ctx context.Context, email, password string) error {
	if err := checkEmail(email); err != nil {
		return err
	}
	if password == "" {
		return provider.Reject(provider.CodeMissingPassword)
	}
	if len([]rune(password)) < provider.MinPasswordLength {
		return provider.Reject(provider.CodeWeakPassword)
	}

	hash, err := p.hasher.Hash(password)
	if err != nil {
		return oops.Code("LOCAL_SIGNUP_FAILED").With("operation", "hash password").Wrap(err)
	}
	account, err := NewAccount(email, hash, p.clock.Now())
	if err != nil {
		return oops.Code("LOCAL_SIGNUP_FAILED").With("operation", "new account").Wrap(err)
	}
	if err := p.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return provider.Reject(provider.CodeEmailInUse)
		}
		return oops.Code("LOCAL_SIGNUP_FAILED").With("operation", "create account").Wrap(err)
	}

	p.logger.InfoContext(ctx, "account created", "account_id", account.ID.String())
	p.setCurrent(ctx, account.User())
	return nil
}

// SignOut implements session.Provider. Signing out when nobody is signed
// in succeeds without notifying.
func (p *Provider) SignOut(ctx context.Context) error {
	p.setCurrent(ctx, nil)
	return nil
}

// SendPasswordResetEmail implements session.Provider. Unknown addresses
// succeed without sending anything so that callers cannot probe which
// addresses are registered.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	if err := checkEmail(email); err != nil {
		return err
	}

	account, err := p.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			p.logger.DebugContext(ctx, "password reset requested for unknown address")
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "get account by email").Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "generate token").Wrap(err)
	}
	now := p.clock.Now()
	reset, err := NewPasswordReset(account.ID, hash, now, now.Add(ResetTokenExpiry))
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "new reset").Wrap(err)
	}
	if err := p.resets.Create(ctx, reset); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "store reset").Wrap(err)
	}
	if err := p.mailer.SendPasswordReset(ctx, account.Email, token, reset.ExpiresAt); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "send reset").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a mailed reset code.
// All outstanding codes for the account are revoked. The user is not
// signed in.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if code == "" {
		return provider.Reject(provider.CodeInvalidActionCode)
	}
	if len([]rune(newPassword)) < provider.MinPasswordLength {
		return provider.Reject(provider.CodeWeakPassword)
	}

	reset, err := p.resets.GetByTokenHash(ctx, HashResetToken(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return provider.Reject(provider.CodeInvalidActionCode)
		}
		return oops.Code("RESET_CONFIRM_FAILED").With("operation", "get reset").Wrap(err)
	}
	now := p.clock.Now()
	if reset.IsExpired(now) {
		return provider.Reject(provider.CodeExpiredActionCode)
	}

	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").With("operation", "hash password").Wrap(err)
	}
	if err := p.accounts.UpdatePassword(ctx, reset.AccountID, hash, now); err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "update password").
			With("account_id", reset.AccountID.String()).
			Wrap(err)
	}

	// The password is already changed; leftover codes expire on their own.
	if err := p.resets.DeleteByAccount(ctx, reset.AccountID); err != nil {
		errutil.LogWarn(ctx, p.logger, "failed to revoke reset codes", err,
			"account_id", reset.AccountID.String())
	}
	return nil
}

// PurgeExpiredResets removes reset codes that can no longer be used.
func (p *Provider) PurgeExpiredResets(ctx context.Context) (int64, error) {
	n, err := p.resets.DeleteExpired(ctx, p.clock.Now())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

// setCurrent changes the signed-in user and notifies listeners if it
// changed.
func (p *Provider) setCurrent(ctx context.Context, u *User) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if sameUser(p.current, u) {
		p.mu.Unlock()
		return
	}
	p.current = u
	listeners := make([]func(session.Identity), 0, len(p.listeners))
	for i := uint64(0); i < p.nextID; i++ {
		if fn, ok := p.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	p.mu.Unlock()

	p.persist(ctx, u)
	for _, fn := range listeners {
		fn(identityOf(u))
	}
}

func (p *Provider) persist(ctx context.Context, u *User) {
	if p.store == nil {
		return
	}
	var err error
	if u == nil {
		err = p.store.Clear()
	} else {
		err = p.store.Save(persistedSession{AccountID: u.UID(), Email: u.Email()})
	}
	if err != nil {
		errutil.LogWarn(ctx, p.logger, "failed to persist session", err)
	}
}

func sameUser(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.id == b.id
}

func identityOf(u *User) session.Identity {
	if u == nil {
		return nil
	}
	return u
}

func checkEmail(email string) error {
	trimmed := validation.TrimEmail(email)
	if trimmed == "" {
		return provider.Reject(provider.CodeMissingEmail)
	}
	if !validation.IsValidEmail(trimmed) {
		return provider.Reject(provider.CodeInvalidEmail)
	}
	return nil
}

var _ session.Provider = (*Provider)(nil)
