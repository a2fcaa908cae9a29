// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTree(output *bytes.Buffer, ran *[]string) *Command {
	var count int
	return &Command{
		Name:   "vtctl",
		Output: output,
		Subcommands: []*Command{
			{
				Name:    "watch",
				Summary: "watch messages",
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
					flagSet.IntVar(&count, "count", 0, "stop after this many")
					return flagSet
				},
				Run: func(args []string) error {
					*ran = append(*ran, "watch", strings.Join(args, ","))
					if count > 0 {
						*ran = append(*ran, "count")
					}
					return nil
				},
			},
			{
				Name:    "capture",
				Summary: "capture files",
				Subcommands: []*Command{
					{Name: "dump", Summary: "dump a file", Run: func(args []string) error {
						*ran = append(*ran, "dump", strings.Join(args, ","))
						return nil
					}},
				},
			},
		},
	}
}

func TestDispatch(t *testing.T) {
	var output bytes.Buffer
	var ran []string

	if err := testTree(&output, &ran).Execute([]string{"watch", "--count", "2", "extra"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.Join(ran, "|"); got != "watch|extra|count" {
		t.Errorf("ran %q", got)
	}

	ran = nil
	if err := testTree(&output, &ran).Execute([]string{"capture", "dump", "file.vtcap"}); err != nil {
		t.Fatalf("Execute nested: %v", err)
	}
	if got := strings.Join(ran, "|"); got != "dump|file.vtcap" {
		t.Errorf("ran %q", got)
	}
}

func TestUnknownCommandSuggestion(t *testing.T) {
	var output bytes.Buffer
	var ran []string
	err := testTree(&output, &ran).Execute([]string{"wacth"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "watch"`) {
		t.Errorf("error = %v, want suggestion for watch", err)
	}
}

func TestUnknownFlagSuggestion(t *testing.T) {
	var output bytes.Buffer
	var ran []string
	err := testTree(&output, &ran).Execute([]string{"watch", "--cuont", "1"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --count") {
		t.Errorf("error = %v, want suggestion for --count", err)
	}
	if len(ran) != 0 {
		t.Errorf("command ran despite flag error: %v", ran)
	}
}

func TestSubcommandRequired(t *testing.T) {
	var output bytes.Buffer
	var ran []string
	err := testTree(&output, &ran).Execute([]string{"capture"})
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %v, want subcommand required", err)
	}
	if !strings.Contains(output.String(), "dump") {
		t.Errorf("help not printed:\n%s", output.String())
	}
}

func TestHelp(t *testing.T) {
	var output bytes.Buffer
	var ran []string
	if err := testTree(&output, &ran).Execute([]string{"watch", "--help"}); err != nil {
		t.Fatalf("Execute --help: %v", err)
	}
	help := output.String()
	for _, want := range []string{"vtctl watch [flags]", "--count", "watch messages"} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}
	if len(ran) != 0 {
		t.Errorf("command ran for --help: %v", ran)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"watch", "watch", 0},
		{"wacth", "watch", 2},
		{"snd", "send", 1},
		{"kitten", "sitting", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestNewLoggerHandlerSelection(t *testing.T) {
	var buffer bytes.Buffer
	newLogger(&buffer, false, 0).Info("connected", "socket_path", "/tmp/x.sock")
	if !strings.HasPrefix(buffer.String(), "{") {
		t.Errorf("non-terminal output is not JSON: %q", buffer.String())
	}

	buffer.Reset()
	newLogger(&buffer, true, 0).Info("connected", "socket_path", "/tmp/x.sock")
	if !strings.Contains(buffer.String(), "socket_path=/tmp/x.sock") {
		t.Errorf("terminal output is not text: %q", buffer.String())
	}
}
