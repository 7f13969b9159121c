// Package output renders portal screens — resource lists, item details
// and request failures — for the terminal.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// ColorMode controls colour output.
type ColorMode int

const (
	// ColorAuto enables colours based on the environment (default).
	ColorAuto ColorMode = iota
	// ColorAlways forces colours on.
	ColorAlways
	// ColorNever forces colours off.
	ColorNever
)

// ParseColorMode parses a config string into a ColorMode.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors decides whether to emit colours for the given mode.
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return true
	}
}

// Printer writes formatted portal output.
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

// NewPrinter creates a printer writing to stdout/stderr.
func NewPrinter(useColors bool) *Printer {
	return &Printer{out: os.Stdout, err: os.Stderr, useColors: useColors}
}

// NewPrinterWithWriters creates a printer with explicit writers, for tests.
func NewPrinterWithWriters(out, errw io.Writer, useColors bool) *Printer {
	return &Printer{out: out, err: errw, useColors: useColors}
}

// Out returns the printer's standard output writer.
func (p *Printer) Out() io.Writer { return p.out }

// Success prints a confirmation line.
func (p *Printer) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.useColors {
		msg = color.GreenString(msg)
	}
	fmt.Fprintln(p.out, msg)
}

// Info prints a plain informational line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.out, fmt.Sprintf(format, args...))
}
