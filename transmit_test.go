package rastcat

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	strings.Builder
	flushed int
}

func (f *flushRecorder) Flush() error {
	f.flushed++
	return nil
}

func TestTransmitITerm2(t *testing.T) {
	buf := testBuffer(4, 2, false)
	data, err := EncodePNG(buf, DefaultZLevel)
	require.NoError(t, err)

	var out flushRecorder
	tx := &Transmitter{Out: &out, Proto: ITerm2, Lines: -1}
	require.NoError(t, tx.Transmit(buf, data))

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "\x1b]1337;File="), "must open with the OSC 1337 File sequence")
	assert.Contains(t, got, fmt.Sprintf("size=%d", len(data)))
	assert.Contains(t, got, "inline=1")
	assert.Contains(t, got, "width=4px")
	assert.Contains(t, got, "height=2px")
	assert.Equal(t, 1, out.flushed, "output must be flushed immediately")

	payload := got[strings.Index(got, ":")+1 : strings.Index(got, "\x07")]
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestTransmitITerm2LineHint(t *testing.T) {
	buf := testBuffer(4, 2, false)
	data, err := EncodePNG(buf, DefaultZLevel)
	require.NoError(t, err)

	var out strings.Builder
	tx := &Transmitter{Out: &out, Proto: ITerm2, Lines: 12}
	require.NoError(t, tx.Transmit(buf, data))

	assert.Contains(t, out.String(), "height=12")
	assert.NotContains(t, out.String(), "height=2px", "line hint replaces the pixel height")
}

func TestTransmitRawPassthrough(t *testing.T) {
	raw := []byte("not really a png but transmitted unchanged")

	var out strings.Builder
	tx := &Transmitter{Out: &out, Proto: ITerm2, Lines: -1}
	require.NoError(t, tx.TransmitRaw(raw))

	got := out.String()
	payload := got[strings.Index(got, ":")+1 : strings.Index(got, "\x07")]
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded, "pass-through bytes must be unchanged")
	assert.NotContains(t, got, "width=", "pass-through has no pixel geometry")
}

func TestTransmitRawKitty(t *testing.T) {
	png, err := EncodePNG(testBuffer(2, 2, false), DefaultZLevel)
	require.NoError(t, err)

	var out strings.Builder
	tx := &Transmitter{Out: &out, Proto: Kitty, Lines: -1}

	// PNG payloads ride the kitty graphics protocol directly.
	require.NoError(t, tx.TransmitRaw(png))
	assert.True(t, strings.HasPrefix(out.String(), "\x1b_G"))

	// Non-PNG documents fall back to the OSC 1337 File sequence.
	out.Reset()
	require.NoError(t, tx.TransmitRaw([]byte("GIF89a...")))
	assert.True(t, strings.HasPrefix(out.String(), "\x1b]1337;File="))
}

func TestTransmitMultiplexedFraming(t *testing.T) {
	buf := testBuffer(4, 2, false)
	data, err := EncodePNG(buf, DefaultZLevel)
	require.NoError(t, err)

	var out strings.Builder
	tx := &Transmitter{Out: &out, Proto: ITerm2, Framing: Framing{Multiplexed: true}, Lines: -1}
	require.NoError(t, tx.Transmit(buf, data))

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "\x1bPtmux;"), "multiplexer variant wraps in passthrough")
	assert.Contains(t, got, "\x1b\x1b]1337;", "inner escapes are doubled")
	assert.True(t, strings.HasSuffix(strings.TrimSuffix(got, "\n"), "\x1b\\"))
}

func TestTransmitCursorBracketing(t *testing.T) {
	buf := testBuffer(4, 2, false)
	data, err := EncodePNG(buf, DefaultZLevel)
	require.NoError(t, err)

	tests := []struct {
		name        string
		framing     Framing
		lines       int
		wantBracket bool
	}{
		{"multiplexed with hint", Framing{Multiplexed: true}, 8, true},
		{"multiplexed natural size", Framing{Multiplexed: true}, -1, false},
		{"plain terminal with hint", Framing{}, 8, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			tx := &Transmitter{Out: &out, Proto: ITerm2, Framing: tt.framing, Lines: tt.lines}
			require.NoError(t, tx.Transmit(buf, data))

			got := out.String()
			if tt.wantBracket {
				assert.Contains(t, got, "[?25l", "cursor hidden before the image")
				assert.Contains(t, got, "[?25h", "cursor shown after the image")
				assert.Contains(t, got, "[8B", "cursor repositioned past the image")
				assert.Less(t, strings.Index(got, "[?25l"), strings.Index(got, "]1337;"))
			} else {
				assert.NotContains(t, got, "[?25l")
				assert.NotContains(t, got, "[?25h")
			}
		})
	}
}

func TestTransmitKitty(t *testing.T) {
	buf := testBuffer(4, 2, false)
	data, err := EncodePNG(buf, DefaultZLevel)
	require.NoError(t, err)

	var out strings.Builder
	tx := &Transmitter{Out: &out, Proto: Kitty, Lines: -1}
	require.NoError(t, tx.Transmit(buf, data))

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "\x1b_Ga=T,f=100;"))
	assert.True(t, strings.HasSuffix(strings.TrimSuffix(got, "\n"), "\x1b\\"))
}

func TestKittyChunking(t *testing.T) {
	// Payload large enough to force several chunks.
	data := make([]byte, 3*kittyChunkSize)
	for i := range data {
		data[i] = byte(i)
	}

	got := kittySequence(data, Framing{})
	assert.Contains(t, got, "a=T,f=100,m=1;", "first chunk opens the transfer")
	assert.Contains(t, got, "\x1b_Gm=0;", "last chunk closes the transfer")

	var payload strings.Builder
	for _, chunk := range strings.Split(got, "\x1b\\") {
		if chunk == "" {
			continue
		}
		sep := strings.Index(chunk, ";")
		require.GreaterOrEqual(t, sep, 0)
		body := chunk[sep+1:]
		assert.LessOrEqual(t, len(body), kittyChunkSize)
		payload.WriteString(body)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload.String())
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestTransmitSixel(t *testing.T) {
	buf := testBuffer(8, 8, false)
	data, err := EncodePNG(buf, DefaultZLevel)
	require.NoError(t, err)

	var out strings.Builder
	tx := &Transmitter{Out: &out, Proto: Sixel, Lines: -1}
	require.NoError(t, tx.Transmit(buf, data))

	got := out.String()
	assert.Contains(t, got, "\x1bP", "sixel stream is a DCS sequence")
	assert.Contains(t, got, "q")
}
