// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Printer formats control messages for output. On a terminal it colors
// direction markers and syntax-highlights JSON bodies; anywhere else it
// emits the bytes unchanged so output stays pipeable.
type Printer struct {
	color    bool
	inbound  lipgloss.Style
	outbound lipgloss.Style
	faint    lipgloss.Style
}

// NewPrinter returns a Printer for w. Color is used only when w is a
// terminal and NO_COLOR is unset.
func NewPrinter(w io.Writer) *Printer {
	file, isFile := w.(*os.File)
	color := isFile && term.IsTerminal(int(file.Fd())) && os.Getenv("NO_COLOR") == ""
	return newPrinter(w, color)
}

func newPrinter(w io.Writer, color bool) *Printer {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	// SetColorProfile is needed as well: ColorProfile() otherwise
	// re-detects from the environment.
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	return &Printer{
		color:    color,
		inbound:  renderer.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		outbound: renderer.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		faint:    renderer.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Direction returns "<-" for inbound frames and "->" for outbound.
func (p *Printer) Direction(inbound bool) string {
	if inbound {
		return p.render(p.inbound, "<-")
	}
	return p.render(p.outbound, "->")
}

// Faint renders secondary text such as digests and offsets.
func (p *Printer) Faint(text string) string {
	return p.render(p.faint, text)
}

// JSON returns body, highlighted when color is enabled. Bodies that
// fail to highlight are returned as-is.
func (p *Printer) JSON(body []byte) string {
	if !p.color {
		return string(body)
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, string(body), "json", "terminal256", "monokai"); err != nil {
		return string(body)
	}
	return buffer.String()
}

func (p *Printer) render(style lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}
