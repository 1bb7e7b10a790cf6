// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holosession/internal/session"
)

// SessionStatus is the status command's JSON output.
type SessionStatus struct {
	Status   string `json:"status"`
	UID      string `json:"uid,omitempty"`
	Identity string `json:"identity,omitempty"`
}

func statusOf(s session.State) SessionStatus {
	return SessionStatus{
		Status:   string(s.Status()),
		UID:      s.UID(),
		Identity: describe(s.Identity),
	}
}

func newStatusCmd(deps *Deps) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openSession(cmd, deps)
			if err != nil {
				return err
			}
			defer app.Close()

			st := statusOf(app.ctrl.State())
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(st); err != nil {
					return oops.Code("OUTPUT_FAILED").Wrap(err)
				}
				return nil
			}
			cmd.Printf("Status: %s\n", st.Status)
			if st.UID != "" {
				cmd.Printf("UID:    %s\n", st.UID)
			}
			if st.Identity != "" && st.Identity != st.UID {
				cmd.Printf("Email:  %s\n", st.Identity)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	return cmd
}

func newWatchCmd(deps *Deps) *cobra.Command {
	var buffer int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print session state changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			app, err := openSession(cmd, deps)
			if err != nil {
				return err
			}
			defer app.Close()

			ch, cancel := app.ctrl.Watch(buffer)
			defer cancel()
			for {
				select {
				case state, ok := <-ch:
					if !ok {
						return nil
					}
					st := statusOf(state)
					cmd.Printf("%s %s %s\n", deps.Clock.Now().UTC().Format(time.RFC3339), st.Status, st.Identity)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().IntVar(&buffer, "buffer", 16, "state updates buffered before older ones are dropped")
	return cmd
}
