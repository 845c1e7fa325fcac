package rastcat

import (
	"fmt"

	"github.com/airbusgeo/godal"
)

// StackOptions configures ComposeStack. Window applies to the first file
// and defines the output aspect ratio; the zero window means full extent.
type StackOptions struct {
	Window     SourceWindow
	Width      int
	Resampling godal.ResamplingAlg
	Scale      *ScaleRange
	Alpha      AlphaMask
	Reverse    bool
}

// ComposeStack reads band 1 of up to 3 single-band rasters and combines
// them as the R, G, B channels of one display buffer. Missing trailing
// channels stay zero; Reverse assigns the files to B, G, R instead.
func ComposeStack(paths []string, opts StackOptions) (*DisplayBuffer, error) {
	if len(paths) == 0 || len(paths) > 3 {
		return nil, fmt.Errorf("stack mode takes 1 to 3 files, got %d", len(paths))
	}
	if opts.Reverse {
		reversed := make([]string, len(paths))
		for i, p := range paths {
			reversed[len(paths)-1-i] = p
		}
		paths = reversed
	}

	first, err := Open(paths[0])
	if err != nil {
		return nil, err
	}
	defer first.Close()

	win, err := first.ClampWindow(opts.Window)
	if err != nil {
		return nil, err
	}
	outW := opts.Width
	outH, err := displayHeight(win, outW)
	if err != nil {
		return nil, err
	}

	raw := make([][]float64, 3)
	scaled := make([][]uint16, 3)
	for i, p := range paths {
		src := first
		if i > 0 {
			if src, err = Open(p); err != nil {
				return nil, err
			}
		}
		// Each file reads its own full extent resampled to the first
		// file's window geometry.
		srcWin := win
		if i > 0 {
			srcWin = src.FullWindow()
		}
		samples, rerr := src.ReadBand(1, srcWin, outW, outH, opts.Resampling)
		if i > 0 {
			src.Close()
		}
		if rerr != nil {
			return nil, rerr
		}
		raw[i] = samples
		scaled[i] = Rescale(samples, opts.Scale)
	}
	for i := len(paths); i < 3; i++ {
		scaled[i] = make([]uint16, outW*outH)
	}

	buf := newDisplayBuffer(outW, outH, len(opts.Alpha) > 0)
	pix := buf.Pix
	for i := 0; i < outW*outH; i++ {
		a := uint16(DisplayMax)
		if buf.Channels == 4 {
			for c := 0; c < len(paths); c++ {
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
