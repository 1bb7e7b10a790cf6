// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/holosession/internal/validation"
)

var tracer = otel.Tracer("holosession/session")

// Controller mirrors a Provider's authentication state.
//
// The provider's notification callback is the only writer of the state.
// Reads are safe from any goroutine.
type Controller struct {
	provider Provider
	logger   *slog.Logger

	mu          sync.RWMutex
	state       State
	closed      bool
	watchers    map[uint64]chan State
	nextWatcher uint64

	ready       chan struct{}
	done        chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

// Option configures a Controller during construction.
type Option func(*Controller)

// WithLogger sets the logger used for state transitions and dropped
// watcher updates. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController subscribes to provider and returns a controller in the
// initializing state. Exactly one subscription is registered; it is
// released by Close.
func NewController(provider Provider, opts ...Option) (*Controller, error) {
	if provider == nil {
		return nil, oops.Code(CodeNilProvider).Errorf("identity provider is required")
	}
	c := &Controller{
		provider: provider,
		logger:   slog.Default(),
		state:    State{Initializing: true},
		watchers: make(map[uint64]chan State),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	// The provider may notify synchronously, so no lock is held here.
	unsubscribe := provider.SubscribeToAuthChanges(c.onAuthChange)
	if unsubscribe == nil {
		unsubscribe = func() {}
	}
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	return c, nil
}

// onAuthChange applies a provider notification.
func (c *Controller) onAuthChange(id Identity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	wasInitializing := c.state.Initializing
	c.state = State{Identity: id}
	next := c.state
	if wasInitializing {
		close(c.ready)
	}
	for _, ch := range c.watchers {
		select {
		case ch <- next:
		default:
			// Replace the oldest buffered state so the newest is never lost.
			// Senders hold c.mu, so the slot freed here stays free.
			select {
			case <-ch:
			default:
			}
			ch <- next
			WatchDropped.Inc()
			c.logger.Warn("stale session update dropped: watcher buffer full",
				"status", string(next.Status()))
		}
	}
	c.mu.Unlock()

	recordTransition(next.Status())
	c.logger.Debug("session state changed",
		"status", string(next.Status()),
		"uid", next.UID(),
		"initial", wasInitializing)
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Identity returns the current identity, or nil.
func (c *Controller) Identity() Identity {
	return c.State().Identity
}

// Initializing reports whether the provider has yet to report the initial
// state.
func (c *Controller) Initializing() bool {
	return c.State().Initializing
}

// Ready returns a channel closed once the initial state is known.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// WaitReady blocks until the initial state is known and returns it.
// The controller imposes no deadline of its own; bound the wait with ctx.
func (c *Controller) WaitReady(ctx context.Context) (State, error) {
	select {
	case <-c.ready:
		return c.State(), nil
	default:
	}
	select {
	case <-c.ready:
		return c.State(), nil
	case <-c.done:
		return c.State(), errClosed("wait_ready")
	case <-ctx.Done():
		return c.State(), oops.Code(CodeNotReady).Wrap(ctx.Err())
	}
}

// Login asks the provider to sign in with the trimmed email and password.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	email = validation.TrimEmail(email)
	return c.run(ctx, OpLogin, func(ctx context.Context) error {
		return c.provider.SignInWithCredentials(ctx, email, password)
	})
}

// Signup asks the provider to create an account with the trimmed email and
// password. Whether the new account is signed in is up to the provider.
func (c *Controller) Signup(ctx context.Context, email, password string) error {
	email = validation.TrimEmail(email)
	return c.run(ctx, OpSignup, func(ctx context.Context) error {
		return c.provider.CreateAccountWithCredentials(ctx, email, password)
	})
}

// Logout asks the provider to sign out.
func (c *Controller) Logout(ctx context.Context) error {
	return c.run(ctx, OpLogout, c.provider.SignOut)
}

// ResetPassword asks the provider to send a password reset email to the
// trimmed address.
func (c *Controller) ResetPassword(ctx context.Context, email string) error {
	email = validation.TrimEmail(email)
	return c.run(ctx, OpResetPassword, func(ctx context.Context) error {
		return c.provider.SendPasswordResetEmail(ctx, email)
	})
}

func (c *Controller) run(ctx context.Context, op string, call func(context.Context) error) (err error) {
	if c.isClosed() {
		recordOperation(op, ResultClosed, 0)
		return errClosed(op)
	}

	ctx, span := tracer.Start(ctx, "session."+op,
		trace.WithAttributes(attribute.String("session.operation", op)),
	)
	start := time.Now()
	defer func() {
		status := ResultSuccess
		if err != nil {
			status = ResultError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		recordOperation(op, status, time.Since(start))
		span.End()
	}()

	if callErr := call(ctx); callErr != nil {
		authErr := newAuthError(op, callErr)
		span.SetAttributes(attribute.String("session.error_code", authErr.Code))
		return authErr
	}
	return nil
}

func (c *Controller) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close releases the provider subscription and closes all watcher channels.
// Notifications arriving afterwards are ignored. Close is idempotent.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		unsubscribe := c.unsubscribe
		for id, ch := range c.watchers {
			close(ch)
			delete(c.watchers, id)
		}
		close(c.done)
		c.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
	})
}
