package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Flowra banner to w, colored for the terminal's profile.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  _____ _                         ", "#34d399"},
		{" |  ___| | _____      ___ __ __ _ ", "#2dd4bf"},
		{" | |_  | |/ _ \\ \\ /\\ / / '__/ _` |", "#22d3ee"},
		{" |  _| | | (_) \\ V  V /| | | (_| |", "#38bdf8"},
		{" |_|   |_|\\___/ \\_/\\_/ |_|  \\__,_|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
