// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/holosession/internal/config"
	"github.com/holomush/holosession/internal/provider/identitytoolkit"
	"github.com/holomush/holosession/internal/provider/local"
	"github.com/holomush/holosession/internal/provider/local/postgres"
	"github.com/holomush/holosession/internal/provider/sessionstore"
	"github.com/holomush/holosession/internal/session"
	"github.com/holomush/holosession/internal/xdg"
	"github.com/holomush/holosession/pkg/errutil"
)

// newProvider builds the identity provider selected by cfg.
func newProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Provider, func(), error) {
	store, err := sessionStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Provider {
	case config.ProviderIdentityToolkit:
		client, err := identitytoolkit.NewClient(identitytoolkit.ClientConfig{
			APIKey:        cfg.APIKey,
			Endpoint:      cfg.Endpoint,
			TokenEndpoint: cfg.TokenEndpoint,
			Timeout:       cfg.RequestTimeout,
		})
		if err != nil {
			return nil, nil, oops.Code("PROVIDER_INIT_FAILED").With("provider", cfg.Provider).Wrap(err)
		}
		p, err := identitytoolkit.NewProvider(client,
			identitytoolkit.WithSessionStore(store),
			identitytoolkit.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, oops.Code("PROVIDER_INIT_FAILED").With("provider", cfg.Provider).Wrap(err)
		}
		return p, p.Close, nil

	case config.ProviderLocal:
		return newLocalProvider(ctx, cfg, store, logger)

	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("provider", cfg.Provider).Errorf("unknown provider %q", cfg.Provider)
	}
}

func newLocalProvider(ctx context.Context, cfg *config.Config, store sessionstore.Store, logger *slog.Logger) (session.Provider, func(), error) {
	var (
		accounts local.AccountRepository
		resets   local.ResetRepository
		release  = func() {}
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		accounts = postgres.NewAccountRepository(pool)
		resets = postgres.NewResetRepository(pool)
		release = pool.Close
	} else {
		logger.Warn("no database-url configured; accounts are kept in memory and lost on exit")
		accounts = local.NewMemoryAccountRepository()
		resets = local.NewMemoryResetRepository()
	}

	p, err := local.NewProvider(accounts, resets,
		local.WithSessionStore(store),
		local.WithLogger(logger),
	)
	if err != nil {
		release()
		return nil, nil, oops.Code("PROVIDER_INIT_FAILED").With("provider", cfg.Provider).Wrap(err)
	}
	if err := p.Restore(ctx); err != nil {
		errutil.LogWarn(ctx, logger, "could not restore saved session", err)
	}
	return p, release, nil
}

func sessionStore(cfg *config.Config) (*sessionstore.FileStore, error) {
	path, err := xdg.SessionFile(cfg.StateDir, cfg.Provider)
	if err != nil {
		return nil, oops.Code("PROVIDER_INIT_FAILED").With("operation", "resolve state dir").Wrap(err)
	}
	return sessionstore.NewFileStore(path), nil
}
