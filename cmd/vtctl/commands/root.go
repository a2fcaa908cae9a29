// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/vibetunnel/vibetunnel/cmd/vtctl/cli"
	"github.com/vibetunnel/vibetunnel/lib/version"
)

// streams holds the writers commands print to.
type streams struct {
	stdout io.Writer
	stderr io.Writer
}

// Root returns the vtctl command tree writing to the process streams.
func Root() *cli.Command {
	return newRoot(streams{stdout: os.Stdout, stderr: os.Stderr})
}

func newRoot(out streams) *cli.Command {
	var showVersion bool
	return &cli.Command{
		Name:    "vtctl",
		Summary: "Talk to a VibeTunnel daemon over its control socket",
		Description: `vtctl connects to the VibeTunnel daemon's control socket, the
length-prefixed JSON channel the daemon uses for session and system
messages. It can watch inbound traffic, send one-off messages, measure
keep-alive round trips, and inspect frame capture files.

Configuration comes from --config or VIBETUNNEL_CONFIG when set,
otherwise built-in defaults. Flags override file values.`,
		Output: out.stderr,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("vtctl", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*cli.Command{
			watchCommand(out),
			sendCommand(out),
			pingCommand(out),
			captureCommand(out),
			versionCommand(out),
		},
		Run: func(args []string) error {
			if showVersion {
				fmt.Fprintf(out.stdout, "vtctl %s\n", version.Info())
				return nil
			}
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return fmt.Errorf("command required\n\nRun 'vtctl --help' for usage.")
		},
	}
}

func versionCommand(out streams) *cli.Command {
	var verbose bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "include Go version and platform")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if verbose {
				fmt.Fprintf(out.stdout, "vtctl %s\n", version.Full())
			} else {
				fmt.Fprintf(out.stdout, "vtctl %s\n", version.Info())
			}
			return nil
		},
	}
}
