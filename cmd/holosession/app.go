// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holosession/internal/config"
	"github.com/holomush/holosession/internal/logging"
	"github.com/holomush/holosession/internal/session"
	"github.com/holomush/holosession/internal/validation"
)

// sessionApp is one session root: configuration, provider and controller.
type sessionApp struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider session.Provider
	ctrl     *session.Controller
	release  func()
}

// loadConfig loads and validates configuration and sets up logging.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.SetDefault("holosession", version, cfg.LogFormat, level, cmd.ErrOrStderr())
	return cfg, logger, nil
}

// openSession builds the session root and waits for the initial state.
func openSession(cmd *cobra.Command, deps *Deps) (*sessionApp, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	provider, release, err := deps.ProviderFactory(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if release == nil {
		release = func() {}
	}

	ctrl, err := session.NewController(provider, session.WithLogger(logger))
	if err != nil {
		release()
		return nil, err
	}
	app := &sessionApp{cfg: cfg, logger: logger, provider: provider, ctrl: ctrl, release: release}

	readyCtx, cancel := context.WithTimeout(ctx, cfg.ReadyTimeout)
	defer cancel()
	if _, err := ctrl.WaitReady(readyCtx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close tears down the controller, then the provider.
func (a *sessionApp) Close() {
	a.ctrl.Close()
	a.release()
}

// transition watches for the state an operation produces. It must be opened
// before the operation runs: providers may notify before or after the
// operation returns.
type transition struct {
	app    *sessionApp
	before session.State
	ch     <-chan session.State
	cancel func()
}

func (a *sessionApp) watchTransition() *transition {
	before := a.ctrl.State()
	ch, cancel := a.ctrl.Watch(4)
	return &transition{app: a, before: before, ch: ch, cancel: cancel}
}

func (t *transition) Close() { t.cancel() }

// awaitSignIn waits for an authenticated state other than the one the
// operation started from. A session that already belongs to email counts,
// since signing in to the same account again may not notify.
func (t *transition) awaitSignIn(ctx context.Context, email string) (session.State, error) {
	email = validation.TrimEmail(email)
	return t.await(ctx, session.StatusAuthenticated, func(s session.State) bool {
		if t.before.Status() != session.StatusAuthenticated || s.UID() != t.before.UID() {
			return true
		}
		return strings.EqualFold(describe(s.Identity), email)
	})
}

// awaitStatus waits for the session to reach want.
func (t *transition) awaitStatus(ctx context.Context, want session.Status) (session.State, error) {
	return t.await(ctx, want, func(session.State) bool { return true })
}

func (t *transition) await(ctx context.Context, want session.Status, accept func(session.State) bool) (session.State, error) {
	timer := time.NewTimer(t.app.cfg.ReadyTimeout)
	defer timer.Stop()

	for {
		select {
		case state, ok := <-t.ch:
			if !ok {
				return t.app.ctrl.State(), oops.Code(session.CodeClosed).Errorf("session closed")
			}
			if state.Status() == want && accept(state) {
				return state, nil
			}
		case <-timer.C:
			return t.app.ctrl.State(), oops.Code("SESSION_TIMEOUT").
				With("want", string(want)).
				Errorf("timed out waiting for the session to become %s", want)
		case <-ctx.Done():
			return t.app.ctrl.State(), oops.Code("SESSION_TIMEOUT").Wrap(ctx.Err())
		}
	}
}

// describe renders an identity for display.
func describe(id session.Identity) string {
	if id == nil {
		return ""
	}
	if e, ok := id.(interface{ Email() string }); ok && e.Email() != "" {
		return e.Email()
	}
	return id.UID()
}
