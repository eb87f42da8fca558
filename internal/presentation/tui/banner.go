package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the hsmgrid banner followed by version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []termenv.Style{
		termenv.String(" _                            _     _ ").Foreground(p.Color("#818cf8")),
		termenv.String("| |__  ___ _ __ ___   __ _ _ __(_) __| |").Foreground(p.Color("#a78bfa")),
		termenv.String("| '_ \\/ __| '_ ` _ \\ / _` | '__| |/ _` |").Foreground(p.Color("#c084fc")),
		termenv.String("| | | \\__ \\ | | | | | (_| | |  | | (_| |").Foreground(p.Color("#e879f9")),
		termenv.String("|_| |_|___/_| |_| |_|\\__, |_|  |_|\\__,_|").Foreground(p.Color("#f472b6")),
		termenv.String("                     |___/  " + version).Foreground(p.Color("#fb7185")),
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintln(w)
}
