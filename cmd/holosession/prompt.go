// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPasswordTerminal prompts on stderr and reads a password from the
// controlling terminal without echo.
func readPasswordTerminal(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", oops.Code("PASSWORD_PROMPT_UNAVAILABLE").
			Errorf("stdin is not a terminal; use --password-stdin")
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return string(b), nil
}

// secretSource reads passwords either from the first line of stdin or by
// prompting.
type secretSource struct {
	cmd       *cobra.Command
	deps      *Deps
	fromStdin bool
	stdin     *bufio.Reader
	line      string
}

func newSecretSource(cmd *cobra.Command, deps *Deps, fromStdin bool) *secretSource {
	return &secretSource{cmd: cmd, deps: deps, fromStdin: fromStdin}
}

// read returns the next password. With --password-stdin every call returns
// the same line, so confirmation prompts need no second line.
func (s *secretSource) read(prompt string) (string, error) {
	if !s.fromStdin {
		return s.deps.PasswordReader(s.cmd, prompt)
	}
	if s.stdin == nil {
		s.stdin = bufio.NewReader(s.cmd.InOrStdin())
		line, err := s.stdin.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		s.line = strings.TrimRight(line, "\r\n")
	}
	return s.line, nil
}
