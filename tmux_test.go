package rastcat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramingWrap(t *testing.T) {
	seq := "\x1b]1337;File=inline=1:AAAA\x07"

	plain := Framing{}
	assert.Equal(t, seq, plain.Wrap(seq), "no wrapping outside a multiplexer")

	mux := Framing{Multiplexed: true}
	got := mux.Wrap(seq)
	assert.True(t, strings.HasPrefix(got, "\x1bPtmux;"))
	assert.True(t, strings.HasSuffix(got, "\x1b\\"))
	assert.Contains(t, got, "\x1b\x1b]1337;", "inner escapes are doubled")
}

func TestFramingWrapPlainText(t *testing.T) {
	mux := Framing{Multiplexed: true}
	assert.Equal(t, "hello", mux.Wrap("hello"), "only escape sequences get wrapped")
}

func TestFramingSequences(t *testing.T) {
	start, escape, end := Framing{}.Sequences()
	assert.Empty(t, start)
	assert.Equal(t, "\x1b", escape)
	assert.Empty(t, end)

	start, escape, end = Framing{Multiplexed: true}.Sequences()
	assert.Equal(t, "\x1bPtmux;", start)
	assert.Equal(t, "\x1b\x1b", escape)
	assert.Equal(t, "\x1b\\", end)
}

func TestDetectFraming(t *testing.T) {
	t.Setenv("TMUX", "")
	t.Setenv("TERM_PROGRAM", "")
	t.Setenv("TERM", "xterm-256color")
	assert.False(t, DetectFraming().Multiplexed)

	t.Setenv("TMUX", "/tmp/tmux-1000/default,1234,0")
	assert.True(t, DetectFraming().Multiplexed)

	t.Setenv("TMUX", "")
	t.Setenv("TERM", "screen-256color")
	assert.True(t, DetectFraming().Multiplexed)
}
