package rastcat

import (
	"os"
	"strings"
)

// MultiplexedMaxWidth caps the display width under a terminal multiplexer,
// whose passthrough buffers choke on very large payloads.
const MultiplexedMaxWidth = 400

// Framing describes how escape sequences must be wrapped for the terminal
// actually rendering them. It is computed once at startup and threaded
// through explicitly; there is no module-level multiplexer flag.
type Framing struct {
	Multiplexed bool
}

// DetectFraming inspects the environment for a terminal multiplexer.
func DetectFraming() Framing {
	return Framing{Multiplexed: inMultiplexer()}
}

func inMultiplexer() bool {
	switch {
	case os.Getenv("TMUX") != "":
		return true
	case os.Getenv("TERM_PROGRAM") == "tmux" || os.Getenv("TERM_PROGRAM") == "screen":
		return true
	case strings.HasPrefix(os.Getenv("TERM"), "screen"):
		return true
	default:
		return false
	}
}

// Sequences returns the start, escape and end fragments for building a
// sequence by hand under the current framing.
func (f Framing) Sequences() (start, escape, end string) {
	if f.Multiplexed {
		return "\x1bPtmux;", "\x1b\x1b", "\x1b\\"
	}
	return "", "\x1b", ""
}

// Wrap frames a complete escape sequence for passthrough when running under
// a multiplexer: \ePtmux;\e{seq}\e\\ with every inner ESC doubled.
func (f Framing) Wrap(seq string) string {
	if !f.Multiplexed {
		return seq
	}
	if !strings.HasPrefix(seq, "\x1b") {
		return seq
	}
	return "\x1bPtmux;" + strings.ReplaceAll(seq, "\x1b", "\x1b\x1b") + "\x1b\\"
}
