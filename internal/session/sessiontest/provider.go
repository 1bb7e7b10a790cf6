// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sessiontest provides a scriptable session.Provider for tests.
package sessiontest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/holosession/internal/session"
)

// User is a minimal session.Identity.
type User struct {
	ID    string
	Email string
}

// UID implements session.Identity.
func (u *User) UID() string { return u.ID }

// Provider is a session.Provider whose operations are testify mock calls
// and whose notifications are driven explicitly with Emit.
type Provider struct {
	mock.Mock

	mu          sync.Mutex
	listeners   map[int]func(session.Identity)
	nextID      int
	subscribes  int
	unsubscribe int

	// InitialOnSubscribe, when set, is delivered synchronously from
	// SubscribeToAuthChanges before it returns.
	InitialOnSubscribe bool
	Initial            session.Identity
}

// NewProvider creates a Provider with no listeners.
func NewProvider() *Provider {
	return &Provider{listeners: make(map[int]func(session.Identity))}
}

// SubscribeToAuthChanges implements session.Provider.
func (p *Provider) SubscribeToAuthChanges(onChange func(session.Identity)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = onChange
	p.subscribes++
	initial, emit := p.Initial, p.InitialOnSubscribe
	p.mu.Unlock()

	if emit {
		onChange(initial)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.unsubscribe++
			p.mu.Unlock()
		})
	}
}

// Emit delivers id to every current listener, in subscription order.
func (p *Provider) Emit(id session.Identity) {
	p.mu.Lock()
	fns := make([]func(session.Identity), 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

// Subscribers returns the number of active listeners.
func (p *Provider) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// SubscribeCount returns how many times SubscribeToAuthChanges was called.
func (p *Provider) SubscribeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribes
}

// UnsubscribeCount returns how many subscriptions were released.
func (p *Provider) UnsubscribeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unsubscribe
}

// SignInWithCredentials implements session.Provider.
func (p *Provider) SignInWithCredentials(ctx context.Context, email, password string) error {
	args := p.Called(ctx, email, password)
	return args.Error(0)
}

// CreateAccountWithCredentials implements session.Provider.
func (p *Provider) CreateAccountWithCredentials(ctx context.Context, email, password string) error {
	args := p.Called(ctx, email, password)
	return args.Error(0)
}

// SignOut implements session.Provider.
func (p *Provider) SignOut(ctx context.Context) error {
	args := p.Called(ctx)
	return args.Error(0)
}

// SendPasswordResetEmail implements session.Provider.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	args := p.Called(ctx, email)
	return args.Error(0)
}

var _ session.Provider = (*Provider)(nil)
