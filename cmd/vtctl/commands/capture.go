// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/vibetunnel/vibetunnel/cmd/vtctl/cli"
	"github.com/vibetunnel/vibetunnel/lib/capture"
)

func captureCommand(out streams) *cli.Command {
	return &cli.Command{
		Name:    "capture",
		Summary: "Inspect frame capture files",
		Subcommands: []*cli.Command{
			captureDumpCommand(out),
		},
	}
}

func captureDumpCommand(out streams) *cli.Command {
	var (
		diagnostic bool
		bodies     bool
	)
	return &cli.Command{
		Name:    "dump",
		Summary: "Print the frames in a capture file",
		Description: `Print the header and every frame of a capture file written with
--capture. Each frame's digest is verified; a mismatch stops the dump
with an error. --diag prints the raw CBOR diagnostic notation of every
item instead, without decoding or verification.`,
		Usage: "vtctl capture dump [flags] FILE",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
			flagSet.BoolVar(&diagnostic, "diag", false, "print CBOR diagnostic notation")
			flagSet.BoolVar(&bodies, "bodies", true, "print frame bodies")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected one capture file, got %d arguments", len(args))
			}
			if diagnostic {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("reading capture file: %w", err)
				}
				return capture.Diagnose(data, out.stdout)
			}
			return dumpCapture(args[0], bodies, out)
		},
	}
}

func dumpCapture(path string, bodies bool, out streams) error {
	reader, err := capture.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	header := reader.Header()
	fmt.Fprintf(out.stdout, "session %s started %s socket %s\n",
		header.SessionID, header.StartedAt.Format(time.RFC3339Nano), header.SocketPath)

	printer := cli.NewPrinter(out.stdout)
	count := 0
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		count++
		offset := frame.Timestamp.Sub(header.StartedAt)
		fmt.Fprintf(out.stdout, "%4d %12s %s %7d bytes %-4s %s\n",
			count, offset.Round(time.Microsecond),
			printer.Direction(frame.Direction == capture.DirectionInbound),
			len(frame.Body), frame.Compression,
			printer.Faint(frame.Digest.String()[:16]))
		if bodies {
			fmt.Fprintf(out.stdout, "     %s\n", printer.JSON(frame.Body))
		}
	}
	fmt.Fprintf(out.stdout, "%d frames\n", count)
	return nil
}
