// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/vibetunnel/vibetunnel/cmd/vtctl/cli"
)

type sendParams struct {
	file         string
	waitResponse bool
	timeout      time.Duration
}

func sendCommand(out streams) *cli.Command {
	var (
		globals globalFlags
		params  sendParams
	)
	return &cli.Command{
		Name:    "send",
		Summary: "Send one message to the daemon",
		Description: `Connect, send a single JSON object, and disconnect. The message is
given inline or read from a file with --file; files may be JSONC
(comments and trailing commas are stripped). With --wait-response the
first inbound message after the send is printed to stdout.`,
		Usage: "vtctl send [flags] [JSON]",
		Examples: []cli.Example{
			{Command: `vtctl send '{"type":"request","category":"session","action":"list"}'`},
			{Description: "Send a commented message file and print the reply", Command: "vtctl send --file request.jsonc --wait-response"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
			globals.register(flagSet)
			params = sendParams{}
			flagSet.StringVarP(&params.file, "file", "f", "", "read the message from a JSON or JSONC file")
			flagSet.BoolVar(&params.waitResponse, "wait-response", false, "print the first inbound message after sending")
			flagSet.DurationVar(&params.timeout, "timeout", 10*time.Second, "give up after this long")
			return flagSet
		},
		Run: func(args []string) error {
			payload, err := readPayload(params.file, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), params.timeout)
			defer cancel()
			return runSend(ctx, &globals, params, payload, out)
		},
	}
}

// readPayload returns the message from --file or the single
// positional argument, validated as a JSON object.
func readPayload(file string, args []string) ([]byte, error) {
	var payload []byte
	switch {
	case file != "" && len(args) > 0:
		return nil, errors.New("give the message inline or with --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading message file: %w", err)
		}
		payload = jsonc.ToJSON(data)
	case len(args) == 1:
		payload = []byte(args[0])
	case len(args) == 0:
		return nil, errors.New("message required: pass JSON inline or use --file")
	default:
		return nil, fmt.Errorf("expected one message argument, got %d", len(args))
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(payload, &object); err != nil {
		return nil, fmt.Errorf("message is not a JSON object: %w", err)
	}
	compact, err := json.Marshal(object)
	if err != nil {
		return nil, err
	}
	return compact, nil
}

func runSend(ctx context.Context, globals *globalFlags, params sendParams, payload []byte, out streams) error {
	s, err := globals.openSession("send")
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.waitReady(ctx); err != nil {
		return err
	}
	if err := s.manager.Send(ctx, payload); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	s.logger.Debug("message sent", "bytes", len(payload))

	if !params.waitResponse {
		return nil
	}
	select {
	case response := <-s.messages:
		_, err := fmt.Fprintf(out.stdout, "%s\n", response)
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for response: %w", ctx.Err())
	}
}
