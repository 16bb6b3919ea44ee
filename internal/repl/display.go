package repl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Terminal color codes
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
)

// ColorEnabled reports whether f is a terminal that should get ANSI colors
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type painter struct {
	enabled bool
}

func (p painter) paint(color, s string) string {
	if !p.enabled {
		return s
	}
	return color + s + Reset
}

func (p painter) prompt(text string) string {
	return p.paint(Yellow, text+" > ")
}

func (p painter) side(c string) string {
	switch c {
	case "w", "white":
		return p.paint(Blue, "White")
	case "b", "black":
		return p.paint(Red, "Black")
	default:
		return c
	}
}

// renderBoard writes an ASCII board with colored pieces and coordinates
func (p painter) renderBoard(w io.Writer, ascii string) {
	lines := strings.Split(ascii, "\n")
	last := len(lines) - 1

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		isFileLine := i == 0 || i == last

		var sb strings.Builder
		for _, char := range line {
			switch {
			case char >= 'a' && char <= 'h' && isFileLine:
				sb.WriteString(p.paint(Cyan, string(char)))
			case char >= 'A' && char <= 'Z':
				sb.WriteString(p.paint(Blue, string(char)))
			case char >= 'a' && char <= 'z':
				sb.WriteString(p.paint(Red, string(char)))
			case char >= '1' && char <= '8':
				sb.WriteString(p.paint(Cyan, string(char)))
			default:
				sb.WriteRune(char)
			}
		}
		fmt.Fprintln(w, sb.String())
	}
}
