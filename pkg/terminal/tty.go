package terminal

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// IsInteractive reports whether stdout is an actual terminal rather than
// a redirected file or pipe. The debug console refuses to launch
// bubbletea against a non-interactive stdout: raw mode and the alt
// screen buffer both require a real TTY.
func IsInteractive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ColorProfile reports the color depth the attached terminal supports,
// independent of the protocol/graphics detection in detect.go. Widgets
// that pick colors via lipgloss/components use this to decide whether to
// downgrade truecolor hex values to the terminal's actual palette.
func ColorProfile() termenv.Profile {
	return termenv.EnvColorProfile()
}
