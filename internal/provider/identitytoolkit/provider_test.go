// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytoolkit

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holosession/internal/provider"
	"github.com/holomush/holosession/internal/provider/sessionstore"
	"github.com/holomush/holosession/internal/session"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	ch     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) onChange(id session.Identity) {
	r.mu.Lock()
	uid := ""
	if id != nil {
		uid = id.UID()
	}
	r.events = append(r.events, uid)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func (r *recorder) uids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestProvider(t *testing.T, backend *fakeBackend, store sessionstore.Store) *Provider {
	t.Helper()
	p, err := NewProvider(newTestClient(t, backend.start()),
		WithSessionStore(store),
		WithRestoreBackoff(time.Millisecond, 2),
	)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func saveSession(t *testing.T, store sessionstore.Store, uid string) {
	t.Helper()
	require.NoError(t, store.Save(&savedSession{
		UID:          uid,
		Email:        "saved@example.com",
		IDToken:      signedIDToken(t, uid, "saved@example.com", time.Now().Add(-time.Hour)),
		RefreshToken: "refresh-saved",
	}))
}

func TestNewProvider_RequiresClient(t *testing.T) {
	_, err := NewProvider(nil)
	require.Error(t, err)
}

func TestProvider_NoSavedSession(t *testing.T) {
	backend := newFakeBackend(t)
	p := newTestProvider(t, backend, sessionstore.NewMemoryStore())

	rec := newRecorder()
	unsubscribe := p.SubscribeToAuthChanges(rec.onChange)
	defer unsubscribe()
	rec.wait(t)

	assert.Equal(t, []string{""}, rec.uids())
	assert.Zero(t, backend.callCount("/token/token"))
}

func TestProvider_RestoresSavedSession(t *testing.T) {
	backend := newFakeBackend(t)
	store := sessionstore.NewMemoryStore()
	saveSession(t, store, "uid-restored")
	p := newTestProvider(t, backend, store)

	rec := newRecorder()
	p.SubscribeToAuthChanges(rec.onChange)
	rec.wait(t)

	assert.Equal(t, []string{"uid-restored"}, rec.uids())
	require.NotNil(t, p.CurrentUser())
	assert.Equal(t, "restored@example.com", p.CurrentUser().Email())

	var saved savedSession
	ok, err := store.Load(&saved)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "refresh-rotated", saved.RefreshToken)
}

func TestProvider_RejectedSessionIsCleared(t *testing.T) {
	backend := newFakeBackend(t)
	backend.scriptRefresh(refreshOutcome{status: 400, message: "INVALID_REFRESH_TOKEN"})
	store := sessionstore.NewMemoryStore()
	saveSession(t, store, "uid-gone")
	p := newTestProvider(t, backend, store)

	rec := newRecorder()
	p.SubscribeToAuthChanges(rec.onChange)
	rec.wait(t)

	assert.Equal(t, []string{""}, rec.uids())
	assert.Equal(t, 1, backend.callCount("/token/token"))
	ok, err := store.Load(&savedSession{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProvider_TransientFailuresRetry(t *testing.T) {
	backend := newFakeBackend(t)
	backend.scriptRefresh(
		refreshOutcome{status: 503},
		refreshOutcome{},
	)
	store := sessionstore.NewMemoryStore()
	saveSession(t, store, "uid-restored")
	p := newTestProvider(t, backend, store)

	rec := newRecorder()
	p.SubscribeToAuthChanges(rec.onChange)
	rec.wait(t)

	assert.Equal(t, []string{"uid-restored"}, rec.uids())
	assert.Equal(t, 2, backend.callCount("/token/token"))
}

func TestProvider_OfflineRestoreUsesSavedIdentity(t *testing.T) {
	backend := newFakeBackend(t)
	backend.scriptRefresh(refreshOutcome{status: 503})
	store := sessionstore.NewMemoryStore()
	saveSession(t, store, "uid-offline")
	p := newTestProvider(t, backend, store)

	rec := newRecorder()
	p.SubscribeToAuthChanges(rec.onChange)
	rec.wait(t)

	assert.Equal(t, []string{"uid-offline"}, rec.uids())
	assert.Equal(t, 3, backend.callCount("/token/token"), "one attempt plus two retries")

	ok, err := store.Load(&savedSession{})
	require.NoError(t, err)
	assert.True(t, ok, "saved session kept for the next run")
}

func TestProvider_LateSubscriberGetsCurrentState(t *testing.T) {
	backend := newFakeBackend(t)
	store := sessionstore.NewMemoryStore()
	saveSession(t, store, "uid-restored")
	p := newTestProvider(t, backend, store)

	first := newRecorder()
	p.SubscribeToAuthChanges(first.onChange)
	first.wait(t)

	late := newRecorder()
	p.SubscribeToAuthChanges(late.onChange)
	assert.Equal(t, []string{"uid-restored"}, late.uids(), "delivered before Subscribe returns")
}

func TestProvider_SignInWaitsForRestore(t *testing.T) {
	backend := newFakeBackend(t)
	backend.gate = make(chan struct{})
	uid := backend.addAccount("a@b.co", "password1")
	store := sessionstore.NewMemoryStore()
	saveSession(t, store, "uid-restored")
	p := newTestProvider(t, backend, store)
	t.Cleanup(func() { closeGate(backend) })

	rec := newRecorder()
	p.SubscribeToAuthChanges(rec.onChange)

	done := make(chan error, 1)
	go func() {
		done <- p.SignInWithCredentials(context.Background(), "a@b.co", "password1")
	}()

	select {
	case err := <-done:
		t.Fatalf("sign-in finished before restore: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Zero(t, backend.callCount("/v1/accounts:signInWithPassword"))

	closeGate(backend)
	require.NoError(t, <-done)
	rec.wait(t)
	rec.wait(t)

	assert.Equal(t, []string{"uid-restored", uid}, rec.uids())
	assert.Equal(t, uid, p.CurrentUser().UID())
}

func closeGate(b *fakeBackend) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gate != nil {
		close(b.gate)
		b.gate = nil
	}
}

func TestProvider_OperationHonorsContextWhileRestoring(t *testing.T) {
	backend := newFakeBackend(t)
	backend.gate = make(chan struct{})
	store := sessionstore.NewMemoryStore()
	saveSession(t, store, "uid-restored")
	p := newTestProvider(t, backend, store)
	t.Cleanup(func() { closeGate(backend) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.SignOut(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProvider_CloseWhileRestoring(t *testing.T) {
	backend := newFakeBackend(t)
	backend.gate = make(chan struct{})
	store := sessionstore.NewMemoryStore()
	saveSession(t, store, "uid-restored")
	p := newTestProvider(t, backend, store)
	t.Cleanup(func() { closeGate(backend) })

	rec := newRecorder()
	p.SubscribeToAuthChanges(rec.onChange)
	p.Close()
	p.Close()

	assert.Empty(t, rec.uids())
	err := p.SignInWithCredentials(context.Background(), "a@b.co", "password1")
	require.Error(t, err)
}

func TestProvider_SignUpSignOutPersistence(t *testing.T) {
	backend := newFakeBackend(t)
	store := sessionstore.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	p := newTestProvider(t, backend, store)

	rec := newRecorder()
	p.SubscribeToAuthChanges(rec.onChange)
	rec.wait(t)

	ctx := context.Background()
	require.NoError(t, p.CreateAccountWithCredentials(ctx, "new@b.co", "password1"))
	rec.wait(t)

	var saved savedSession
	ok, err := store.Load(&saved)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new@b.co", saved.Email)
	assert.NotEmpty(t, saved.RefreshToken)

	require.NoError(t, p.SignOut(ctx))
	rec.wait(t)
	ok, err = store.Load(&saved)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.SignOut(ctx), "signing out twice is harmless")
	assert.Len(t, rec.uids(), 3)
}

func TestProvider_ThroughController(t *testing.T) {
	backend := newFakeBackend(t)
	backend.addAccount("a@b.co", "password1")
	p := newTestProvider(t, backend, sessionstore.NewMemoryStore())

	ctrl, err := session.NewController(p)
	require.NoError(t, err)
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := ctrl.WaitReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StatusUnauthenticated, state.Status())

	err = ctrl.Login(ctx, "a@b.co", "nope")
	var authErr *session.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, provider.CodeInvalidCredential, authErr.Code)
	assert.Equal(t, "Invalid email or password.", authErr.Message)

	err = ctrl.Signup(ctx, "a@b.co", "password1")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "The email address is already in use by another account.", authErr.Message)

	require.NoError(t, ctrl.Login(ctx, "  a@b.co ", "password1"))
	assert.Equal(t, session.StatusAuthenticated, ctrl.State().Status())

	require.NoError(t, ctrl.ResetPassword(ctx, " a@b.co"))
	assert.Equal(t, "a@b.co", backend.body("/v1/accounts:sendOobCode")["email"])
}
