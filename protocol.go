package rastcat

import (
	"fmt"
	"os"
	"strings"
)

// Protocol selects the inline-image escape sequence dialect.
type Protocol int

const (
	Auto Protocol = iota
	ITerm2
	Kitty
	Sixel
)

func (p Protocol) String() string {
	switch p {
	case Auto:
		return "auto"
	case ITerm2:
		return "iterm2"
	case Kitty:
		return "kitty"
	case Sixel:
		return "sixel"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// ParseProtocol resolves a protocol name from the CLI.
func ParseProtocol(name string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return Auto, nil
	case "iterm", "iterm2":
		return ITerm2, nil
	case "kitty":
		return Kitty, nil
	case "sixel":
		return Sixel, nil
	default:
		return Auto, fmt.Errorf("unknown protocol %q (valid: auto, iterm2, kitty, sixel)", name)
	}
}

// DetectProtocol picks a dialect from the environment. A one-shot pipeline
// cannot round-trip device queries over the stream it is printing to, so
// detection is heuristic only and falls back to the OSC 1337 dialect.
func DetectProtocol() Protocol {
	if checkITerm2Support() {
		return ITerm2
	}
	if checkKittySupport() {
		return Kitty
	}
	if checkSixelSupport() {
		return Sixel
	}
	return ITerm2
}

func checkITerm2Support() bool {
	switch {
	case os.Getenv("LC_TERMINAL") == "iTerm2" || os.Getenv("TERM_PROGRAM") == "iTerm.app":
		return true
	case os.Getenv("ITERM_SESSION_ID") != "":
		return true
	case os.Getenv("TERM_PROGRAM") == "WezTerm" || os.Getenv("TERM_PROGRAM") == "wezterm":
		return true
	case os.Getenv("TERM_PROGRAM") == "vscode":
		return true
	case os.Getenv("TERM") == "mintty":
		return true
	default:
		return false
	}
}

func checkKittySupport() bool {
	switch {
	case os.Getenv("KITTY_WINDOW_ID") != "":
		return true
	case os.Getenv("TERM_PROGRAM") == "ghostty":
		return true
	case strings.Contains(os.Getenv("TERM"), "kitty"):
		return true
	case strings.Contains(os.Getenv("TERMINFO"), "Ghostty"):
		return true
	default:
		return false
	}
}

func checkSixelSupport() bool {
	term := os.Getenv("TERM")
	switch {
	case strings.Contains(term, "sixel"):
		return true
	case strings.Contains(term, "mlterm"):
		return true
	case strings.Contains(term, "foot"):
		return true
	default:
		return false
	}
}
