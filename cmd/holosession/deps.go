// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/holomush/holosession/internal/config"
	"github.com/holomush/holosession/internal/observability"
	"github.com/holomush/holosession/internal/provider/local/postgres"
	"github.com/holomush/holosession/internal/session"
)

// Deps contains injectable dependencies for the CLI commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ProviderFactory builds the configured identity provider. The returned
	// function releases it.
	// Default: newProvider
	ProviderFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Provider, func(), error)

	// PasswordReader prompts for a password without echo.
	// Default: readPasswordTerminal
	PasswordReader func(cmd *cobra.Command, prompt string) (string, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: postgres.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger, regs ...observability.Registration) ObservabilityServer

	// Clock drives periodic maintenance in serve.
	// Default: clockwork.NewRealClock
	Clock clockwork.Clock
}

// Migrator wraps the methods migrate uses from postgres.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods serve uses from observability.Server.
type ObservabilityServer interface {
	Handle(pattern string, h http.Handler)
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// resetConfirmer is implemented by providers that can complete a password
// reset themselves.
type resetConfirmer interface {
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
}

// resetPurger is implemented by providers that keep reset codes locally.
type resetPurger interface {
	PurgeExpiredResets(ctx context.Context) (int64, error)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.ProviderFactory == nil {
		out.ProviderFactory = newProvider
	}
	if out.PasswordReader == nil {
		out.PasswordReader = readPasswordTerminal
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return postgres.NewMigrator(databaseURL)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger, regs ...observability.Registration) ObservabilityServer {
			srv := observability.NewServer(addr, ready, regs...)
			srv.SetLogger(logger)
			return srv
		}
	}
	if out.Clock == nil {
		out.Clock = clockwork.NewRealClock()
	}
	return &out
}
