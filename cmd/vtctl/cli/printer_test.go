// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterPlain(t *testing.T) {
	var buffer bytes.Buffer
	printer := NewPrinter(&buffer)

	if got := printer.Direction(true); got != "<-" {
		t.Errorf("Direction(inbound) = %q", got)
	}
	if got := printer.Direction(false); got != "->" {
		t.Errorf("Direction(outbound) = %q", got)
	}
	if got := printer.JSON([]byte(`{"a":1}`)); got != `{"a":1}` {
		t.Errorf("JSON() = %q, want unchanged body", got)
	}
	if got := printer.Faint("abc"); got != "abc" {
		t.Errorf("Faint() = %q", got)
	}
}

func TestPrinterColor(t *testing.T) {
	var buffer bytes.Buffer
	printer := newPrinter(&buffer, true)

	direction := printer.Direction(true)
	if !strings.Contains(direction, "\x1b[") || !strings.Contains(direction, "<-") {
		t.Errorf("Direction(inbound) = %q, want ANSI-styled arrow", direction)
	}
	highlighted := printer.JSON([]byte(`{"type":"event"}`))
	if !strings.Contains(highlighted, "\x1b[") || !strings.Contains(highlighted, "event") {
		t.Errorf("JSON() = %q, want highlighted body", highlighted)
	}
}
