package rastcat

import (
	"fmt"
	"image"
	"math"

	"github.com/airbusgeo/godal"
)

// BandSelection is an ordered sequence of 1-based band indices to use as
// output channels: 1 (grayscale via colormap), 3 (RGB) or 4 (RGBA).
type BandSelection []int

// Validate checks the selection length and that every index exists.
func (sel BandSelection) Validate(bandCount int) error {
	switch len(sel) {
	case 1, 3, 4:
	default:
		return fmt.Errorf("band selection must name 1, 3 or 4 bands, got %d", len(sel))
	}
	for _, b := range sel {
		if b < 1 || b > bandCount {
			return fmt.Errorf("band %d out of range (raster has %d bands)", b, bandCount)
		}
	}
	return nil
}

// DefaultBands derives a selection from the band count: single- and
// dual-band rasters display band 1 through the colormap, three or more
// bands display as RGB, with a flagged alpha band carried as the 4th
// channel.
func DefaultBands(src *RasterSource) BandSelection {
	switch n := src.BandCount(); {
	case n >= 4 && src.HasAlphaBand():
		return BandSelection{1, 2, 3, 4}
	case n >= 3:
		return BandSelection{1, 2, 3}
	default:
		return BandSelection{1}
	}
}

// AlphaMask is a set of sample values treated as fully transparent.
type AlphaMask []float64

func (m AlphaMask) matches(v float64) bool {
	for _, mv := range m {
		if v == mv {
			return true
		}
	}
	return false
}

// DisplayBuffer is the in-memory raster handed to the encoder: fixed output
// size, 16-bit samples, 3 (RGB) or 4 (RGBA) channels. The RGB case keeps
// alpha saturated so the PNG encoder emits an opaque 16-bit image.
type DisplayBuffer struct {
	*image.NRGBA64
	Channels int
}

// ComposeOptions configures a Compose call. The zero Window means the full
// extent, a nil Bands selection is defaulted from the band count.
type ComposeOptions struct {
	Window     SourceWindow
	Bands      BandSelection
	Width      int
	Resampling godal.ResamplingAlg
	Scale      *ScaleRange
	Colormap   Colormap
	Alpha      AlphaMask
}

// Compose reads the selected bands of src resampled to the display size and
// assembles them into a DisplayBuffer.
func Compose(src *RasterSource, opts ComposeOptions) (*DisplayBuffer, error) {
	win, err := src.ClampWindow(opts.Window)
	if err != nil {
		return nil, err
	}
	outW := opts.Width
	outH, err := displayHeight(win, outW)
	if err != nil {
		return nil, err
	}

	sel := opts.Bands
	if sel == nil {
		sel = DefaultBands(src)
	}
	if err := sel.Validate(src.BandCount()); err != nil {
		return nil, err
	}
	if len(opts.Alpha) == 0 {
		opts.Alpha = nodataMask(src, sel)
	}

	if len(sel) == 1 {
		return composeSingle(src, sel[0], win, outW, outH, opts)
	}
	return composeMulti(src, sel, win, outW, outH, opts)
}

// displayHeight preserves the window's aspect ratio at the requested width.
func displayHeight(win SourceWindow, width int) (int, error) {
	if width <= 0 {
		return 0, fmt.Errorf("display width %d has no area", width)
	}
	if win.XSize <= 0 || win.YSize <= 0 {
		return 0, fmt.Errorf("source window %dx%d has no area", win.XSize, win.YSize)
	}
	h := int(math.Round(float64(win.YSize) / float64(win.XSize) * float64(width)))
	if h < 1 {
		h = 1
	}
	return h, nil
}

// composeSingle renders one band through the colormap. The alpha channel is
// only added when a mask is present.
func composeSingle(src *RasterSource, band int, win SourceWindow, outW, outH int, opts ComposeOptions) (*DisplayBuffer, error) {
	samples, err := src.ReadBand(band, win, outW, outH, opts.Resampling)
	if err != nil {
		return nil, err
	}
	scaled := Rescale(samples, opts.Scale)

	buf := newDisplayBuffer(outW, outH, len(opts.Alpha) > 0)
	pix := buf.Pix
	for i, v := range scaled {
		r, g, b := opts.Colormap.At(float64(v) / DisplayMax)
		a := uint16(DisplayMax)
		if buf.Channels == 4 && opts.Alpha.matches(samples[i]) {
			a = 0
		}
		putPixel(pix, i*8, r, g, b, a)
	}
	return buf, nil
}

// nodataMask derives transparency from the selected bands' nodata values
// when the caller supplies no explicit mask.
func nodataMask(src *RasterSource, sel BandSelection) AlphaMask {
	var m AlphaMask
	for _, b := range sel {
		if nd, ok := src.NoData(b); ok && !m.matches(nd) {
			m = append(m, nd)
		}
	}
	return m
}

// alphaScale picks the rescale range for an explicit alpha band: the storage
// type's full range when it has one, otherwise the band's own extrema.
func alphaScale(src *RasterSource, band int) *ScaleRange {
	if r, ok := src.DataTypeRange(band); ok {
		return &r
	}
	return nil
}

// composeMulti renders 3 or 4 bands as channels. Each data channel is
// rescaled independently: a shared explicit range when given, otherwise
// per-channel extrema. A 4th band is opacity, not data, and is scaled
// against its storage type's range rather than stretched.
func composeMulti(src *RasterSource, sel BandSelection, win SourceWindow, outW, outH int, opts ComposeOptions) (*DisplayBuffer, error) {
	hasAlphaBand := len(sel) == 4
	raw := make([][]float64, len(sel))
	scaled := make([][]uint16, len(sel))
	for i, band := range sel {
		samples, err := src.ReadBand(band, win, outW, outH, opts.Resampling)
		if err != nil {
			return nil, err
		}
		raw[i] = samples
		if hasAlphaBand && i == 3 {
			scaled[i] = RescaleAlpha(samples, alphaScale(src, band))
			continue
		}
		scaled[i] = Rescale(samples, opts.Scale)
	}

	buf := newDisplayBuffer(outW, outH, hasAlphaBand || len(opts.Alpha) > 0)
	pix := buf.Pix
	for i := 0; i < outW*outH; i++ {
		a := uint16(DisplayMax)
		if hasAlphaBand {
			a = scaled[3][i]
		}
		if buf.Channels == 4 && len(opts.Alpha) > 0 {
			for c := 0; c < 3; c++ {
				if opts.Alpha.matches(raw[c][i]) {
					a = 0
					break
				}
			}
		}
		putPixel(pix, i*8, scaled[0][i], scaled[1][i], scaled[2][i], a)
	}
	return buf, nil
}

func newDisplayBuffer(w, h int, withAlpha bool) *DisplayBuffer {
	channels := 3
	if withAlpha {
		channels = 4
	}
	return &DisplayBuffer{
		NRGBA64:  image.NewNRGBA64(image.Rect(0, 0, w, h)),
		Channels: channels,
	}
}

// putPixel writes one big-endian NRGBA64 pixel at byte offset off.
func putPixel(pix []uint8, off int, r, g, b, a uint16) {
	pix[off+0] = uint8(r >> 8)
	pix[off+1] = uint8(r)
	pix[off+2] = uint8(g >> 8)
	pix[off+3] = uint8(g)
	pix[off+4] = uint8(b >> 8)
	pix[off+5] = uint8(b)
	pix[off+6] = uint8(a >> 8)
	pix[off+7] = uint8(a)
}
