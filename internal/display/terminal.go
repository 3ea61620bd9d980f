// Package display provides the small amount of terminal-awareness the CLI
// needs: TTY detection to decide NDJSON vs. human output, and lipgloss
// styles for the human-readable renderer used by `rip status` and
// `rip list`. This is a CLI helper, not a TUI: the interactive
// bubbletea-based dashboard the teacher carried for pipeline runs has no
// equivalent here, since an interactive terminal event loop is out of
// scope.
package display

import (
	"os"

	"golang.org/x/term"
)

// TerminalInfo reports what kind of output stream rip is writing to.
type TerminalInfo struct {
	isTTY     bool
	width     int
	noColor   bool
}

// NewTerminalInfo detects the capabilities of stdout.
func NewTerminalInfo() *TerminalInfo {
	fd := int(os.Stdout.Fd())
	isTTY := term.IsTerminal(fd)
	width := 80
	if isTTY {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}
	return &TerminalInfo{
		isTTY:   isTTY,
		width:   width,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// IsTTY reports whether stdout is an interactive terminal. The CLI's output
// mode auto-detection (commands.outputMode) checks the terminal directly
// rather than through this method.
func (ti *TerminalInfo) IsTTY() bool { return ti.isTTY }

// Width returns the terminal width in columns, or 80 if it cannot be
// determined.
func (ti *TerminalInfo) Width() int { return ti.width }

// ColorEnabled reports whether styled output should be emitted: only when
// attached to a TTY and NO_COLOR is unset.
func (ti *TerminalInfo) ColorEnabled() bool {
	return ti.isTTY && !ti.noColor
}
