// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holosession/internal/session"
	"github.com/holomush/holosession/pkg/errutil"
)

// Default values for serve.
const (
	defaultPurgeInterval   = 10 * time.Minute
	defaultShutdownTimeout = 5 * time.Second
)

func newServeCmd(deps *Deps) *cobra.Command {
	var purgeInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Hold a session open and expose metrics and health probes",
		Long: `Keep a long-lived session root running, logging state changes and serving
/metrics, /healthz/liveness and /healthz/readiness on --metrics-addr until
interrupted. Readiness turns green once the initial session state is known.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return runServe(ctx, cmd, deps, purgeInterval)
		},
	}
	cmd.Flags().DurationVar(&purgeInterval, "purge-interval", defaultPurgeInterval, "how often expired reset codes are removed (local provider)")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *Deps, purgeInterval time.Duration) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	provider, release, err := deps.ProviderFactory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}
	ctrl, err := session.NewController(provider, session.WithLogger(logger))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	var errCh <-chan error
	if cfg.MetricsAddr != "" {
		srv := deps.ObservabilityServerFactory(cfg.MetricsAddr,
			func() bool { return !ctrl.Initializing() },
			logger,
			session.RegisterMetrics,
		)
		srv.Handle("/session", sessionHandler(ctrl))
		errCh, err = srv.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.MetricsAddr).Wrap(err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				errutil.LogWarn(ctx, logger, "observability server shutdown failed", err)
			}
		}()
	}

	var purge <-chan time.Time
	purger, canPurge := provider.(resetPurger)
	if canPurge && purgeInterval > 0 {
		ticker := deps.Clock.NewTicker(purgeInterval)
		defer ticker.Stop()
		purge = ticker.Chan()
	}

	states, cancelWatch := ctrl.Watch(16)
	defer cancelWatch()

	logger.Info("session root running", "provider", cfg.Provider)
	for {
		select {
		case state, ok := <-states:
			if !ok {
				return nil
			}
			logger.Info("session state", "status", string(state.Status()), "uid", state.UID())
		case <-purge:
			n, err := purger.PurgeExpiredResets(ctx)
			if err != nil {
				errutil.LogWarn(ctx, logger, "failed to purge expired reset codes", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired reset codes", "count", n)
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
			}
			errCh = nil
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		}
	}
}

// sessionHandler serves the current session state as JSON.
func sessionHandler(ctrl *session.Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck // client may disconnect
		json.NewEncoder(w).Encode(statusOf(ctrl.State()))
	})
}
