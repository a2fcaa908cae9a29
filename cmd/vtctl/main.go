// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// vtctl talks to a VibeTunnel daemon over its control socket.
package main

import (
	"fmt"
	"os"

	"github.com/vibetunnel/vibetunnel/cmd/vtctl/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an error
		// carrying the exit code; don't add an "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
