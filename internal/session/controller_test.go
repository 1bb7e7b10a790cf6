// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/holosession/internal/session"
	"github.com/holomush/holosession/internal/session/sessiontest"
	"github.com/holomush/holosession/pkg/errutil"
)

func newController(t *testing.T, p *sessiontest.Provider) *session.Controller {
	t.Helper()
	c, err := session.NewController(p)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewController(t *testing.T) {
	t.Run("starts initializing with no identity", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c := newController(t, p)

		state := c.State()
		assert.True(t, state.Initializing)
		assert.Nil(t, state.Identity)
		assert.Equal(t, session.StatusUnknown, state.Status())
		assert.Equal(t, 1, p.SubscribeCount())
	})

	t.Run("rejects nil provider", func(t *testing.T) {
		c, err := session.NewController(nil)
		assert.Nil(t, c)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, session.CodeNilProvider)
	})

	t.Run("accepts synchronous initial notification", func(t *testing.T) {
		p := sessiontest.NewProvider()
		p.InitialOnSubscribe = true
		p.Initial = &sessiontest.User{ID: "u-1"}
		c := newController(t, p)

		assert.False(t, c.Initializing())
		assert.Equal(t, "u-1", c.Identity().UID())
		select {
		case <-c.Ready():
		default:
			t.Fatal("ready channel should be closed")
		}
	})
}

func TestController_Notifications(t *testing.T) {
	t.Run("first notification with no user ends initialization", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c := newController(t, p)

		p.Emit(nil)

		state := c.State()
		assert.False(t, state.Initializing)
		assert.Nil(t, state.Identity)
		assert.Equal(t, session.StatusUnauthenticated, state.Status())
	})

	t.Run("identity is stored by reference", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c := newController(t, p)
		user := &sessiontest.User{ID: "u-1", Email: "a@b.co"}

		p.Emit(user)

		assert.Same(t, user, c.Identity())
		assert.Equal(t, session.StatusAuthenticated, c.State().Status())
	})

	t.Run("initializing never returns to true", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c := newController(t, p)

		p.Emit(&sessiontest.User{ID: "u-1"})
		p.Emit(nil)
		p.Emit(&sessiontest.User{ID: "u-2"})

		assert.False(t, c.Initializing())
		assert.Equal(t, "u-2", c.State().UID())
	})

	t.Run("each notification replaces the identity wholesale", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c := newController(t, p)

		p.Emit(&sessiontest.User{ID: "u-1"})
		p.Emit(nil)

		assert.Nil(t, c.Identity())
	})

	t.Run("notifications after close are ignored", func(t *testing.T) {
		var captured func(session.Identity)
		p := &capturingProvider{Provider: sessiontest.NewProvider(), capture: &captured}
		c, err := session.NewController(p)
		require.NoError(t, err)
		c.Close()
		captured(&sessiontest.User{ID: "late"})

		assert.True(t, c.Initializing())
		assert.Nil(t, c.Identity())
	})
}

// capturingProvider keeps the callback so it can be invoked after the
// subscription has been released.
type capturingProvider struct {
	*sessiontest.Provider
	capture *func(session.Identity)
}

func (p *capturingProvider) SubscribeToAuthChanges(fn func(session.Identity)) func() {
	*p.capture = fn
	return p.Provider.SubscribeToAuthChanges(fn)
}

func TestController_Login(t *testing.T) {
	t.Run("trims email and forwards password verbatim", func(t *testing.T) {
		p := sessiontest.NewProvider()
		p.On("SignInWithCredentials", mock.Anything, "user@example.com", " pass word ").Return(nil)
		c := newController(t, p)
		p.Emit(nil)

		err := c.Login(context.Background(), "  user@example.com\t", " pass word ")
		require.NoError(t, err)
		p.AssertExpectations(t)
	})

	t.Run("does not change state on success", func(t *testing.T) {
		p := sessiontest.NewProvider()
		p.On("SignInWithCredentials", mock.Anything, "a@b.co", "password123").Return(nil)
		c := newController(t, p)
		p.Emit(nil)

		require.NoError(t, c.Login(context.Background(), "a@b.co", "password123"))
		assert.Nil(t, c.Identity())

		p.Emit(&sessiontest.User{ID: "u-1"})
		assert.Equal(t, "u-1", c.State().UID())
	})

	t.Run("surfaces provider message", func(t *testing.T) {
		p := sessiontest.NewProvider()
		p.On("SignInWithCredentials", mock.Anything, "a@b.co", "bad").
			Return(session.NewProviderError("auth/invalid-credential", "Invalid email or password."))
		c := newController(t, p)
		p.Emit(nil)

		err := c.Login(context.Background(), "a@b.co", "bad")
		require.Error(t, err)

		var authErr *session.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, session.OpLogin, authErr.Op)
		assert.Equal(t, "auth/invalid-credential", authErr.Code)
		assert.Equal(t, "Invalid email or password.", authErr.Message)
		assert.Equal(t, "Invalid email or password.", errutil.UserMessage(err))
		assert.True(t, session.IsCode(err, "auth/invalid-credential"))
		assert.False(t, c.Initializing())
		assert.Nil(t, c.Identity())
	})

	t.Run("falls back to unknown error", func(t *testing.T) {
		p := sessiontest.NewProvider()
		p.On("SignInWithCredentials", mock.Anything, "a@b.co", "x").Return(errors.New(""))
		c := newController(t, p)

		err := c.Login(context.Background(), "a@b.co", "x")
		var authErr *session.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "Unknown error", authErr.Message)
		assert.Empty(t, authErr.Code)
	})

	t.Run("plain provider error message is kept", func(t *testing.T) {
		p := sessiontest.NewProvider()
		cause := errors.New("network unreachable")
		p.On("SignInWithCredentials", mock.Anything, "a@b.co", "x").Return(cause)
		c := newController(t, p)

		err := c.Login(context.Background(), "a@b.co", "x")
		var authErr *session.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "network unreachable", authErr.Message)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("works while still initializing", func(t *testing.T) {
		p := sessiontest.NewProvider()
		p.On("SignInWithCredentials", mock.Anything, "a@b.co", "x").Return(nil)
		c := newController(t, p)

		require.NoError(t, c.Login(context.Background(), "a@b.co", "x"))
		assert.True(t, c.Initializing())
	})
}

func TestController_Signup(t *testing.T) {
	p := sessiontest.NewProvider()
	p.On("CreateAccountWithCredentials", mock.Anything, "new@example.com", "password123").Return(nil).Once()
	p.On("CreateAccountWithCredentials", mock.Anything, "new@example.com", "password123").
		Return(session.NewProviderError("auth/email-already-in-use", "Email already in use.")).Once()
	c := newController(t, p)
	p.Emit(nil)

	require.NoError(t, c.Signup(context.Background(), " new@example.com ", "password123"))

	err := c.Signup(context.Background(), "new@example.com", "password123")
	var authErr *session.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, session.OpSignup, authErr.Op)
	assert.Equal(t, "Email already in use.", authErr.Message)
	p.AssertExpectations(t)
}

func TestController_Logout(t *testing.T) {
	p := sessiontest.NewProvider()
	p.On("SignOut", mock.Anything).Return(nil).Once()
	p.On("SignOut", mock.Anything).Return(errors.New("offline")).Once()
	c := newController(t, p)
	p.Emit(&sessiontest.User{ID: "u-1"})

	require.NoError(t, c.Logout(context.Background()))
	assert.NotNil(t, c.Identity(), "state changes only on notification")
	p.Emit(nil)
	assert.Nil(t, c.Identity())

	err := c.Logout(context.Background())
	var authErr *session.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, session.OpLogout, authErr.Op)
	assert.Equal(t, "offline", authErr.Message)
}

func TestController_ResetPassword(t *testing.T) {
	p := sessiontest.NewProvider()
	p.On("SendPasswordResetEmail", mock.Anything, "a@b.co").Return(nil).Once()
	p.On("SendPasswordResetEmail", mock.Anything, "").
		Return(session.NewProviderError("auth/missing-email", "")).Once()
	c := newController(t, p)
	p.Emit(nil)

	require.NoError(t, c.ResetPassword(context.Background(), "\n a@b.co "))

	err := c.ResetPassword(context.Background(), "   ")
	var authErr *session.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, session.OpResetPassword, authErr.Op)
	assert.Equal(t, "auth/missing-email", authErr.Message)
	assert.False(t, c.Initializing())
	p.AssertExpectations(t)
}

func TestController_Close(t *testing.T) {
	t.Run("releases subscription once", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c, err := session.NewController(p)
		require.NoError(t, err)

		c.Close()
		c.Close()

		assert.Equal(t, 1, p.UnsubscribeCount())
		assert.Equal(t, 0, p.Subscribers())
	})

	t.Run("operations fail after close", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c, err := session.NewController(p)
		require.NoError(t, err)
		c.Close()

		ctx := context.Background()
		for _, err := range []error{
			c.Login(ctx, "a@b.co", "x"),
			c.Signup(ctx, "a@b.co", "x"),
			c.Logout(ctx),
			c.ResetPassword(ctx, "a@b.co"),
		} {
			assert.True(t, session.IsCode(err, session.CodeClosed), "got %v", err)
		}
		p.AssertNotCalled(t, "SignInWithCredentials", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("wait ready returns when closed before ready", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c, err := session.NewController(p)
		require.NoError(t, err)

		go c.Close()
		_, err = c.WaitReady(context.Background())
		assert.True(t, session.IsCode(err, session.CodeClosed))
	})
}

func TestController_WaitReady(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("times out while initializing", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c := newController(t, p)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		state, err := c.WaitReady(ctx)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, session.CodeNotReady)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, state.Initializing)
	})

	t.Run("returns once the provider notifies", func(t *testing.T) {
		p := sessiontest.NewProvider()
		c := newController(t, p)

		go func() {
			time.Sleep(5 * time.Millisecond)
			p.Emit(&sessiontest.User{ID: "u-1"})
		}()

		state, err := c.WaitReady(context.Background())
		require.NoError(t, err)
		assert.False(t, state.Initializing)
		assert.Equal(t, "u-1", state.UID())
	})
}

func TestController_ConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := sessiontest.NewProvider()
	p.On("SignInWithCredentials", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c := newController(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p.Emit(&sessiontest.User{ID: "u"})
				p.Emit(nil)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.State().Status()
			}
		}()
		go func() {
			defer wg.Done()
			_ = c.Login(context.Background(), "a@b.co", "x")
		}()
	}
	wg.Wait()

	assert.False(t, c.Initializing())
}

func TestController_Metrics(t *testing.T) {
	p := sessiontest.NewProvider()
	p.On("SignOut", mock.Anything).Return(nil).Once()
	p.On("SignOut", mock.Anything).Return(errors.New("x")).Once()
	c := newController(t, p)

	success := session.OperationsTotal.WithLabelValues(session.OpLogout, session.ResultSuccess)
	failure := session.OperationsTotal.WithLabelValues(session.OpLogout, session.ResultError)
	transitions := session.StateTransitions.WithLabelValues(string(session.StatusAuthenticated))
	beforeSuccess := testutil.ToFloat64(success)
	beforeFailure := testutil.ToFloat64(failure)
	beforeTransitions := testutil.ToFloat64(transitions)

	p.Emit(&sessiontest.User{ID: "u-1"})
	_ = c.Logout(context.Background())
	_ = c.Logout(context.Background())

	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(success))
	assert.Equal(t, beforeFailure+1, testutil.ToFloat64(failure))
	assert.Equal(t, beforeTransitions+1, testutil.ToFloat64(transitions))
}
