// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/holosession/internal/config"
)

// NewRootCmd creates the root command for the holosession CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

// newRootCmd creates the root command with injectable dependencies.
// If deps is nil, default implementations are used.
func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "holosession",
		Short: "Manage an authenticated session against an identity provider",
		Long: `holosession signs in, signs up, signs out and requests password resets
against an identity provider, and reports the resulting session state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newLoginCmd(deps))
	cmd.AddCommand(newSignupCmd(deps))
	cmd.AddCommand(newLogoutCmd(deps))
	cmd.AddCommand(newResetPasswordCmd(deps))
	cmd.AddCommand(newConfirmResetCmd(deps))
	cmd.AddCommand(newStatusCmd(deps))
	cmd.AddCommand(newWatchCmd(deps))
	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newConfigCmd())

	return cmd
}
