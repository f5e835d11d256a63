// Package printer writes coloured, human-oriented CLI output.
package printer

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"tourismcli/pkg/contracts/domain"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes to an output and an error stream
type Printer struct {
	out io.Writer
	err io.Writer
}

// New creates a printer; nil streams default to stdout and stderr
func New(out, errOut io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Printer{out: out, err: errOut}
}

// Out returns the output stream
func (p *Printer) Out() io.Writer {
	return p.out
}

// Success prints a green line prefixed with a checkmark
func (p *Printer) Success(format string, a ...any) {
	green.Fprintf(p.out, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Info prints a plain line
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

// Warning prints a yellow line
func (p *Printer) Warning(format string, a ...any) {
	yellow.Fprintf(p.out, "! %s\n", fmt.Sprintf(format, a...))
}

// Step prints a cyan progress line
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.out, "→ %s\n", fmt.Sprintf(format, a...))
}

// Detail prints an indented, dimmed line
func (p *Printer) Detail(format string, a ...any) {
	faint.Fprintf(p.out, "    %s\n", fmt.Sprintf(format, a...))
}

// Status prints the final status of one run
func (p *Printer) Status(source string, status domain.RunStatus, format string, a ...any) {
	c := green
	switch status {
	case domain.RunStatusPassedWithWarnings:
		c = yellow
	case domain.RunStatusFailed:
		c = red
	}
	c.Fprintf(p.out, "%-22s", status)
	fmt.Fprintf(p.out, " %s  %s\n", source, fmt.Sprintf(format, a...))
}

// Error prints a red title, the explanation and any suggestions to the
// error stream, and returns an error carrying the title for cobra
func (p *Printer) Error(title, explanation string, suggestions ...string) error {
	red.Fprintf(p.err, "%s\n", title)
	if explanation != "" {
		fmt.Fprintf(p.err, "\n%s\n", explanation)
	}
	if len(suggestions) > 0 {
		fmt.Fprintln(p.err)
		for _, s := range suggestions {
			fmt.Fprintf(p.err, "  - %s\n", s)
		}
	}
	return fmt.Errorf("%s", title)
}
