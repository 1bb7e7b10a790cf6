// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytoolkit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/holosession/internal/provider/sessionstore"
	"github.com/holomush/holosession/internal/session"
	"github.com/holomush/holosession/pkg/errutil"
)

// Restore retry defaults.
const (
	DefaultRestoreBackoff = 250 * time.Millisecond
	DefaultRestoreRetries = 4
)

// savedSession is the record kept in the session store.
type savedSession struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

// Provider implements session.Provider over a Client.
type Provider struct {
	client *Client
	store  sessionstore.Store
	clock  clockwork.Clock
	logger *slog.Logger

	backoffBase    time.Duration
	backoffRetries uint64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	restored  chan struct{}

	// notifyMu serializes state changes with their delivery.
	notifyMu  sync.Mutex
	mu        sync.Mutex
	current   *User
	saved     *savedSession
	listeners map[uint64]func(session.Identity)
	nextID    uint64
}

// Option configures a Provider during construction.
type Option func(*Provider)

// WithSessionStore persists the signed-in session. Defaults to an
// in-memory store, which forgets the session when the process exits.
func WithSessionStore(s sessionstore.Store) Option {
	return func(p *Provider) { p.store = s }
}

// WithClock sets the clock used to compute token expiry.
func WithClock(c clockwork.Clock) Option {
	return func(p *Provider) { p.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithRestoreBackoff sets the exponential backoff used when refreshing a
// saved session fails transiently.
func WithRestoreBackoff(base time.Duration, retries uint64) Option {
	return func(p *Provider) {
		p.backoffBase = base
		p.backoffRetries = retries
	}
}

// NewProvider creates a Provider. Restoration of the saved session starts on
// the first subscription or operation.
func NewProvider(client *Client, opts ...Option) (*Provider, error) {
	if client == nil {
		return nil, oops.Code("IDENTITYTOOLKIT_NIL_CLIENT").Errorf("client is required")
	}
	p := &Provider{
		client:         client,
		clock:          clockwork.NewRealClock(),
		logger:         slog.Default(),
		backoffBase:    DefaultRestoreBackoff,
		backoffRetries: DefaultRestoreRetries,
		restored:       make(chan struct{}),
		listeners:      make(map[uint64]func(session.Identity)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.store == nil {
		p.store = sessionstore.NewMemoryStore()
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p, nil
}

// CurrentUser returns the signed-in user, or nil.
func (p *Provider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SubscribeToAuthChanges implements session.Provider. onChange receives the
// restored user once restoration settles, then every change after it.
func (p *Provider) SubscribeToAuthChanges(onChange func(session.Identity)) func() {
	p.startRestore()

	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = onChange
	current := p.current
	p.mu.Unlock()

	if p.isRestored() {
		onChange(identityOf(current))
	}

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// SignInWithCredentials implements session.Provider.
func (p *Provider) SignInWithCredentials(ctx context.Context, email, password string) error {
	if err := p.awaitRestore(ctx); err != nil {
		return err
	}
	tokens, err := p.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	p.signedIn(ctx, tokens)
	return nil
}

// CreateAccountWithCredentials implements session.Provider. The new account
// is signed in.
func (p *Provider) CreateAccountWithCredentials(ctx context.Context, email, password string) error {
	if err := p.awaitRestore(ctx); err != nil {
		return err
	}
	tokens, err := p.client.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	p.signedIn(ctx, tokens)
	return nil
}

// SignOut implements session.Provider. It only forgets the local session.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.awaitRestore(ctx); err != nil {
		return err
	}
	if err := p.store.Clear(); err != nil {
		errutil.LogWarn(ctx, p.logger, "failed to clear saved session", err)
	}
	p.setCurrent(nil, nil)
	return nil
}

// SendPasswordResetEmail implements session.Provider.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	return p.client.SendPasswordReset(ctx, email)
}

// Close stops a pending restoration and waits for it to exit. Subscribers
// that have not yet received their initial notification never will.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
}

func (p *Provider) startRestore() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.restore()
	})
}

func (p *Provider) isRestored() bool {
	select {
	case <-p.restored:
		return true
	default:
		return false
	}
}

func (p *Provider) awaitRestore(ctx context.Context) error {
	p.startRestore()
	select {
	case <-p.restored:
		return nil
	case <-p.ctx.Done():
		return oops.Code("IDENTITYTOOLKIT_CLOSED").Errorf("provider closed")
	case <-ctx.Done():
		return oops.Code("IDENTITYTOOLKIT_RESTORE_PENDING").Wrap(ctx.Err())
	}
}

func (p *Provider) restore() {
	defer p.wg.Done()

	user, saved := p.restoreSession(p.ctx)
	if p.ctx.Err() != nil {
		return
	}

	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	p.current = user
	p.saved = saved
	listeners := p.snapshotListeners()
	close(p.restored)
	p.mu.Unlock()

	for _, l := range listeners {
		l(identityOf(user))
	}
}

// restoreSession exchanges the saved refresh token for a fresh session.
func (p *Provider) restoreSession(ctx context.Context) (*User, *savedSession) {
	var saved savedSession
	ok, err := p.store.Load(&saved)
	if err != nil {
		errutil.LogWarn(ctx, p.logger, "discarding unreadable saved session", err)
		p.clearStore(ctx)
		return nil, nil
	}
	if !ok || saved.RefreshToken == "" {
		return nil, nil
	}

	backoff := retry.WithMaxRetries(p.backoffRetries, retry.NewExponential(p.backoffBase))
	var tokens *Tokens
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		t, err := p.client.Refresh(ctx, saved.RefreshToken)
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		tokens = t
		return nil
	})

	switch {
	case err == nil:
		user := userFromTokens(tokens, p.clock.Now())
		if user.email == "" {
			user.email = saved.Email
		}
		next := p.persist(ctx, user, tokens)
		p.logger.DebugContext(ctx, "session restored", "uid", user.uid)
		return user, next
	case ctx.Err() != nil:
		return nil, nil
	case isTransient(err):
		errutil.LogWarn(ctx, p.logger, "session refresh unavailable, using saved identity", err)
		user, parseErr := userFromIDToken(saved.IDToken)
		if parseErr != nil {
			user = &User{uid: saved.UID, email: saved.Email}
		}
		if user.uid == "" {
			return nil, nil
		}
		return user, &saved
	default:
		if isRejectedSession(err) {
			p.logger.InfoContext(ctx, "saved session rejected", "uid", saved.UID)
		} else {
			errutil.LogWarn(ctx, p.logger, "session restore failed", err)
		}
		p.clearStore(ctx)
		return nil, nil
	}
}

func (p *Provider) signedIn(ctx context.Context, tokens *Tokens) {
	user := userFromTokens(tokens, p.clock.Now())
	saved := p.persist(ctx, user, tokens)
	p.setCurrent(user, saved)
}

func (p *Provider) persist(ctx context.Context, user *User, tokens *Tokens) *savedSession {
	saved := &savedSession{
		UID:          user.uid,
		Email:        user.email,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
	}
	if err := p.store.Save(saved); err != nil {
		errutil.LogWarn(ctx, p.logger, "failed to save session", err)
	}
	return saved
}

func (p *Provider) clearStore(ctx context.Context) {
	if err := p.store.Clear(); err != nil {
		errutil.LogWarn(ctx, p.logger, "failed to clear saved session", err)
	}
}

// setCurrent replaces the signed-in user and notifies subscribers when the
// UID changed.
func (p *Provider) setCurrent(u *User, saved *savedSession) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	prev := p.current
	p.current = u
	p.saved = saved
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	if sameUser(prev, u) {
		return
	}
	for _, l := range listeners {
		l(identityOf(u))
	}
}

// snapshotListeners must be called with p.mu held.
func (p *Provider) snapshotListeners() []func(session.Identity) {
	out := make([]func(session.Identity), 0, len(p.listeners))
	for _, l := range p.listeners {
		out = append(out, l)
	}
	return out
}

func sameUser(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.uid == b.uid
}

func identityOf(u *User) session.Identity {
	if u == nil {
		return nil
	}
	return u
}

var _ session.Provider = (*Provider)(nil)
