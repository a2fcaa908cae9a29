// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vibetunnel/vibetunnel/cmd/vtctl/cli"
)

func watchCommand(out streams) *cli.Command {
	var globals globalFlags
	return &cli.Command{
		Name:    "watch",
		Summary: "Print every inbound control message",
		Description: `Connect to the control socket and print every inbound message as
one JSON line on stdout until interrupted. Keep-alive pongs are
consumed by the connection and not printed. Connection state changes
are logged to stderr at debug level; the connection reconnects on its
own when the daemon restarts.`,
		Usage: "vtctl watch [flags]",
		Examples: []cli.Example{
			{Description: "Watch with state changes visible", Command: "vtctl watch --log-level debug"},
			{Description: "Record the session for later inspection", Command: "vtctl watch --capture /tmp/control.vtcap"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			globals.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, &globals, out)
		},
	}
}

func runWatch(ctx context.Context, globals *globalFlags, out streams) error {
	s, err := globals.openSession("watch")
	if err != nil {
		return err
	}
	defer s.close()

	printer := cli.NewPrinter(out.stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-s.messages:
			if _, err := fmt.Fprintln(out.stdout, printer.JSON(payload)); err != nil {
				return err
			}
		}
	}
}
