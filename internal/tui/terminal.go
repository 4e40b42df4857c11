package tui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 100

// ANSI escape sequences
const (
	ClearScreen = "\033[2J" // Clear entire screen
	CursorHome  = "\033[H"  // Move cursor to home position (1,1)
)

// Screen is where frames are written. On a terminal each frame replaces the
// previous one; otherwise frames are appended.
type Screen struct {
	out   io.Writer
	fd    int
	isTTY bool
}

// NewScreen creates a Screen writing to out.
func NewScreen(out io.Writer) *Screen {
	s := &Screen{out: out, fd: -1}
	if f, ok := out.(*os.File); ok {
		s.fd = int(f.Fd())
		s.isTTY = term.IsTerminal(s.fd)
	}
	return s
}

// IsTerminal reports whether the output is an interactive terminal.
func (s *Screen) IsTerminal() bool {
	return s.isTTY
}

// Width returns the terminal width, or DefaultWidth when unknown.
func (s *Screen) Width() int {
	if !s.isTTY {
		return DefaultWidth
	}
	width, _, err := term.GetSize(s.fd)
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

// Writer returns the underlying output.
func (s *Screen) Writer() io.Writer {
	return s.out
}

// Draw writes a frame.
func (s *Screen) Draw(lines []string) error {
	if s.isTTY {
		if _, err := fmt.Fprint(s.out, ClearScreen+CursorHome); err != nil {
			return err
		}
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(s.out, line); err != nil {
			return err
		}
	}
	return nil
}
