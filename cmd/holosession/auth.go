// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holosession/internal/config"
	"github.com/holomush/holosession/internal/session"
	"github.com/holomush/holosession/internal/validation"
	"github.com/holomush/holosession/pkg/errutil"
)

// resetFailedMessage replaces the generic fallback when a reset request fails
// without a provider message.
const resetFailedMessage = "Unable to send reset email"

// credentialFlags are shared by commands that take an email and password.
type credentialFlags struct {
	email         string
	passwordStdin bool
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email address")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	_ = cmd.MarkFlagRequired("email")
}

func newLoginCmd(deps *Deps) *cobra.Command {
	flags := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, deps, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runLogin(cmd *cobra.Command, deps *Deps, flags *credentialFlags) error {
	password, err := newSecretSource(cmd, deps, flags.passwordStdin).read("Password: ")
	if err != nil {
		return err
	}
	if err := validation.CheckLogin(flags.email, password); err != nil {
		return err
	}

	app, err := openSession(cmd, deps)
	if err != nil {
		return err
	}
	defer app.Close()

	tr := app.watchTransition()
	defer tr.Close()

	if err := app.ctrl.Login(cmd.Context(), flags.email, password); err != nil {
		return err
	}
	state, err := tr.awaitSignIn(cmd.Context(), flags.email)
	if err != nil {
		return err
	}
	cmd.Printf("Signed in as %s\n", describe(state.Identity))
	return nil
}

func newSignupCmd(deps *Deps) *cobra.Command {
	flags := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSignup(cmd, deps, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runSignup(cmd *cobra.Command, deps *Deps, flags *credentialFlags) error {
	secrets := newSecretSource(cmd, deps, flags.passwordStdin)
	password, err := secrets.read("Password: ")
	if err != nil {
		return err
	}
	confirm, err := secrets.read("Confirm password: ")
	if err != nil {
		return err
	}
	if err := validation.CheckSignup(flags.email, password, confirm); err != nil {
		return err
	}

	app, err := openSession(cmd, deps)
	if err != nil {
		return err
	}
	defer app.Close()

	tr := app.watchTransition()
	defer tr.Close()

	if err := app.ctrl.Signup(cmd.Context(), flags.email, password); err != nil {
		return err
	}
	state, err := tr.awaitSignIn(cmd.Context(), flags.email)
	if err != nil {
		return err
	}
	cmd.Printf("Account created; signed in as %s\n", describe(state.Identity))
	return nil
}

func newLogoutCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openSession(cmd, deps)
			if err != nil {
				return err
			}
			defer app.Close()

			tr := app.watchTransition()
			defer tr.Close()

			if err := app.ctrl.Logout(cmd.Context()); err != nil {
				return err
			}
			if _, err := tr.awaitStatus(cmd.Context(), session.StatusUnauthenticated); err != nil {
				return err
			}
			cmd.Println("Signed out")
			return nil
		},
	}
}

func newResetPasswordCmd(deps *Deps) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Send a password reset email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validation.CheckPasswordReset(email); err != nil {
				return err
			}
			app, err := openSession(cmd, deps)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.ctrl.ResetPassword(cmd.Context(), email); err != nil {
				var authErr *session.AuthError
				if errors.As(err, &authErr) && authErr.Message == errutil.UnknownError {
					authErr.Message = resetFailedMessage
				}
				return err
			}
			cmd.Println("Password reset email sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email address")
	return cmd
}

func newConfirmResetCmd(deps *Deps) *cobra.Command {
	var (
		code          string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "confirm-reset",
		Short: "Set a new password using a reset code (local provider)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := newSecretSource(cmd, deps, passwordStdin).read("New password: ")
			if err != nil {
				return err
			}
			if res := validation.ValidatePasswordStrength(password); !res.OK {
				return oops.Code(validation.CodeWeakPassword).Errorf("%s", res.Reason)
			}

			app, err := openSession(cmd, deps)
			if err != nil {
				return err
			}
			defer app.Close()

			confirmer, ok := app.provider.(resetConfirmer)
			if !ok {
				return oops.Code("UNSUPPORTED_OPERATION").
					With("provider", app.cfg.Provider).
					Errorf("confirm-reset requires the %s provider; use the link in the reset email", config.ProviderLocal)
			}
			if err := confirmer.ConfirmPasswordReset(cmd.Context(), code, password); err != nil {
				return err
			}
			cmd.Println("Password updated; sign in with the new password")
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "reset code from the reset email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}
