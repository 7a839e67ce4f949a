package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the arbor banner to w, coloured when w is a terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	// Greens from sapling to canopy.
	lines := []struct{ text, color string }{
		{"              _                ", "#86efac"},
		{"   __ _ _ __ | |__   ___  _ __ ", "#4ade80"},
		{"  / _` | '__|| '_ \\ / _ \\| '__|", "#22c55e"},
		{" | (_| | |   | |_) | (_) | |   ", "#16a34a"},
		{"  \\__,_|_|   |_.__/ \\___/|_|   ", "#15803d"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Styler colours CLI output when it goes to a terminal.
type Styler struct {
	out *termenv.Output
}

// NewStyler detects the colour profile of w.
func NewStyler(w io.Writer) *Styler {
	return &Styler{out: termenv.NewOutput(w)}
}

// ID renders an anchor id.
func (s *Styler) ID(v string) string {
	return s.out.String(v).Foreground(s.out.Color("#a78bfa")).String()
}

// Kind renders an anchor kind or type.
func (s *Styler) Kind(v string) string {
	return s.out.String(v).Foreground(s.out.Color("#4ade80")).String()
}

// Faint renders secondary text.
func (s *Styler) Faint(v string) string {
	return s.out.String(v).Faint().String()
}

// Error renders a failure message.
func (s *Styler) Error(v string) string {
	return s.out.String(v).Foreground(s.out.Color("#fb7185")).Bold().String()
}
