// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/vibetunnel/vibetunnel/cmd/vtctl/cli"
	"github.com/vibetunnel/vibetunnel/controlchannel"
	"github.com/vibetunnel/vibetunnel/lib/clock"
)

type pingParams struct {
	count    int
	interval time.Duration
	timeout  time.Duration
}

func pingCommand(out streams) *cli.Command {
	var (
		globals globalFlags
		params  pingParams
	)
	return &cli.Command{
		Name:    "ping",
		Summary: "Measure keep-alive round-trip time",
		Description: `Connect and send keep-alive pings, reporting the time until each
pong arrives. Exits 1 if any ping goes unanswered within --timeout.`,
		Usage: "vtctl ping [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ping", pflag.ContinueOnError)
			globals.register(flagSet)
			params = pingParams{}
			flagSet.IntVarP(&params.count, "count", "c", 1, "number of pings")
			flagSet.DurationVar(&params.interval, "interval", time.Second, "pause between pings")
			flagSet.DurationVar(&params.timeout, "timeout", 5*time.Second, "wait this long for each pong")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if params.count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			return runPing(context.Background(), &globals, params, clock.Real(), out)
		},
	}
}

// pongPollInterval is how often Stats is checked for a new pong.
const pongPollInterval = 5 * time.Millisecond

func runPing(ctx context.Context, globals *globalFlags, params pingParams, source clock.Clock, out streams) error {
	s, err := globals.openSession("ping", controlchannel.WithClock(source))
	if err != nil {
		return err
	}
	defer s.close()

	readyCtx, cancel := context.WithTimeout(ctx, params.timeout)
	err = s.waitReady(readyCtx)
	cancel()
	if err != nil {
		return err
	}

	missed := 0
	for sequence := 1; sequence <= params.count; sequence++ {
		if sequence > 1 {
			<-source.After(params.interval)
		}
		id := uuid.NewString()
		sentAt := source.Now()
		if err := s.manager.Send(ctx, controlchannel.NewPing(id, sentAt)); err != nil {
			return fmt.Errorf("sending ping: %w", err)
		}

		roundTrip, ok := awaitPong(s.manager, sentAt, source, params.timeout)
		if !ok {
			missed++
			fmt.Fprintf(out.stdout, "ping %d: no pong within %v\n", sequence, params.timeout)
			continue
		}
		fmt.Fprintf(out.stdout, "ping %d: pong in %v\n", sequence, roundTrip)
	}

	if missed > 0 {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// awaitPong waits for Stats().LastPong to move past sentAt.
func awaitPong(manager *controlchannel.Manager, sentAt time.Time, source clock.Clock, timeout time.Duration) (time.Duration, bool) {
	deadline := source.After(timeout)
	poll := time.NewTicker(pongPollInterval) //nolint:realclock poll interval
	defer poll.Stop()
	for {
		if lastPong := manager.Stats().LastPong; lastPong.After(sentAt) {
			return lastPong.Sub(sentAt), true
		}
		select {
		case <-deadline:
			return 0, false
		case <-poll.C:
		}
	}
}
