package rastcat

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"io"
	"strings"

	"github.com/mattn/go-sixel"
	"github.com/soniakeys/quant/median"
)

const (
	// kittyChunkSize is the payload size per kitty APC chunk.
	kittyChunkSize = 4096
	// sixelColors is the palette size for the sixel stream.
	sixelColors = 255
)

// Transmitter wraps image payloads in the terminal's inline-image escape
// sequence and writes them to Out. Lines is the display-height hint in
// terminal lines; -1 lets the terminal choose the natural size.
type Transmitter struct {
	Out     io.Writer
	Proto   Protocol
	Framing Framing
	Lines   int
}

// NewTransmitter builds a transmitter for out, resolving Auto to the
// detected protocol.
func NewTransmitter(out io.Writer, proto Protocol, framing Framing, lines int) *Transmitter {
	if proto == Auto {
		proto = DetectProtocol()
	}
	return &Transmitter{Out: out, Proto: proto, Framing: framing, Lines: lines}
}

// Transmit emits the encoded DisplayBuffer. data is the PNG payload; the
// sixel dialect re-encodes from the buffer instead.
func (t *Transmitter) Transmit(buf *DisplayBuffer, data []byte) error {
	if t.Proto == Sixel {
		seq, err := sixelSequence(buf.NRGBA64, t.Framing)
		if err != nil {
			return err
		}
		return t.write(seq)
	}
	bounds := buf.Bounds()
	return t.write(t.sequenceFor(data, bounds.Dx(), bounds.Dy()))
}

// pngMagic is the PNG file signature.
var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// TransmitRaw emits an already-displayable file's bytes unchanged. PNG
// payloads go through the kitty dialect when selected; everything else
// falls back to the OSC 1337 File sequence, the one dialect that accepts
// arbitrary document payloads.
func (t *Transmitter) TransmitRaw(data []byte) error {
	if t.Proto == Kitty && bytes.HasPrefix(data, pngMagic) {
		return t.write(kittySequence(data, t.Framing))
	}
	return t.write(t.itermSequence(data, 0, 0))
}

func (t *Transmitter) sequenceFor(data []byte, pxW, pxH int) string {
	if t.Proto == Kitty {
		return kittySequence(data, t.Framing)
	}
	return t.itermSequence(data, pxW, pxH)
}

// itermSequence builds a single self-contained OSC 1337 File sequence.
func (t *Transmitter) itermSequence(data []byte, pxW, pxH int) string {
	params := []string{"inline=1", fmt.Sprintf("size=%d", len(data))}
	if pxW > 0 && pxH > 0 {
		params = append(params, fmt.Sprintf("width=%dpx", pxW))
	}
	switch {
	case t.Lines > 0:
		params = append(params, fmt.Sprintf("height=%d", t.Lines))
	case pxW > 0 && pxH > 0:
		params = append(params, fmt.Sprintf("height=%dpx", pxH))
	}
	seq := fmt.Sprintf("\x1b]1337;File=%s:%s\x07",
		strings.Join(params, ";"),
		base64.StdEncoding.EncodeToString(data),
	)
	return t.Framing.Wrap(seq)
}

// kittySequence builds the kitty graphics APC transfer, chunked when the
// base64 payload exceeds a single chunk.
func kittySequence(data []byte, f Framing) string {
	b64 := base64.StdEncoding.EncodeToString(data)
	if len(b64) <= kittyChunkSize {
		return f.Wrap("\x1b_Ga=T,f=100;" + b64 + "\x1b\\")
	}

	var sb strings.Builder
	for i := 0; i < len(b64); i += kittyChunkSize {
		end := min(i+kittyChunkSize, len(b64))
		var ctrl string
		switch {
		case i == 0:
			ctrl = "a=T,f=100,m=1"
		case end == len(b64):
			ctrl = "m=0"
		default:
			ctrl = "m=1"
		}
		sb.WriteString(f.Wrap("\x1b_G" + ctrl + ";" + b64[i:end] + "\x1b\\"))
	}
	return sb.String()
}

// sixelSequence reduces the buffer to a median-cut palette and encodes the
// DCS sixel stream.
func sixelSequence(img image.Image, f Framing) (string, error) {
	palette := median.Quantizer(sixelColors).Palette(img).ColorPalette()
	paletted := image.NewPaletted(img.Bounds(), palette)
	draw.FloydSteinberg.Draw(paletted, img.Bounds(), img, image.Point{})

	var buf bytes.Buffer
	enc := sixel.NewEncoder(&buf)
	enc.Dither = false
	if err := enc.Encode(paletted); err != nil {
		return "", fmt.Errorf("failed to encode sixel: %w", err)
	}
	return f.Wrap(buf.String()), nil
}

// write emits the sequence, bracketing it with cursor hide/reposition/show
// under a multiplexer with a line hint so the image overwrites rather than
// scrolls past prior output, then flushes immediately.
func (t *Transmitter) write(seq string) error {
	var sb strings.Builder
	bracket := t.Framing.Multiplexed && t.Lines > 0
	if bracket {
		sb.WriteString(t.Framing.Wrap("\x1b[?25l"))
	}
	sb.WriteString(seq)
	if bracket {
		sb.WriteString(t.Framing.Wrap(fmt.Sprintf("\x1b[%dB", t.Lines)))
		sb.WriteString(t.Framing.Wrap("\x1b[?25h"))
	}
	sb.WriteString("\n")

	if _, err := io.WriteString(t.Out, sb.String()); err != nil {
		return fmt.Errorf("failed to write image sequence: %w", err)
	}
	if fl, ok := t.Out.(interface{ Flush() error }); ok {
		return fl.Flush()
	}
	return nil
}
