package rastcat

import (
	"fmt"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
)

var driversOnce sync.Once

// RasterSource is an opened handle to georeferenced raster data. It is
// opened per input and must be closed by the caller.
type RasterSource struct {
	ds   *godal.Dataset
	name string
}

// SourceWindow is a rectangular sub-region of a RasterSource to read.
type SourceWindow struct {
	XOff  int
	YOff  int
	XSize int
	YSize int
}

// Empty reports whether the window is the zero value (meaning full extent).
func (w SourceWindow) Empty() bool {
	return w == SourceWindow{}
}

// Open opens a raster dataset by name (any GDAL-readable path or VSI name).
func Open(name string) (*RasterSource, error) {
	driversOnce.Do(godal.RegisterInternalDrivers)
	ds, err := godal.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open raster %s: %w", name, err)
	}
	return &RasterSource{ds: ds, name: name}, nil
}

// Close releases the underlying dataset.
func (s *RasterSource) Close() error {
	if s.ds == nil {
		return nil
	}
	err := s.ds.Close()
	s.ds = nil
	return err
}

// Name returns the name the source was opened with.
func (s *RasterSource) Name() string { return s.name }

// Width returns the dataset pixel width.
func (s *RasterSource) Width() int { return s.ds.Structure().SizeX }

// Height returns the dataset pixel height.
func (s *RasterSource) Height() int { return s.ds.Structure().SizeY }

// BandCount returns the number of bands in the dataset.
func (s *RasterSource) BandCount() int { return s.ds.Structure().NBands }

// GeoTransform returns the affine transform when the dataset carries one.
func (s *RasterSource) GeoTransform() ([6]float64, bool) {
	gt, err := s.ds.GeoTransform()
	if err != nil {
		return [6]float64{}, false
	}
	return gt, true
}

// NoData returns the nodata value of the given 1-based band, if set.
func (s *RasterSource) NoData(band int) (float64, bool) {
	if band < 1 || band > s.BandCount() {
		return 0, false
	}
	return s.ds.Bands()[band-1].NoData()
}

// HasAlphaBand reports whether band 4 exists and is flagged as alpha.
func (s *RasterSource) HasAlphaBand() bool {
	bands := s.ds.Bands()
	if len(bands) < 4 {
		return false
	}
	return bands[3].ColorInterp() == godal.CIAlpha
}

// DataTypeRange returns the full value range of a band's storage type.
// Float and complex types have no fixed range.
func (s *RasterSource) DataTypeRange(band int) (ScaleRange, bool) {
	if band < 1 || band > s.BandCount() {
		return ScaleRange{}, false
	}
	switch s.ds.Bands()[band-1].Structure().DataType {
	case godal.Byte:
		return ScaleRange{Min: 0, Max: 255}, true
	case godal.UInt16:
		return ScaleRange{Min: 0, Max: 65535}, true
	case godal.Int16:
		return ScaleRange{Min: 0, Max: 32767}, true
	case godal.UInt32:
		return ScaleRange{Min: 0, Max: 4294967295}, true
	case godal.Int32:
		return ScaleRange{Min: 0, Max: 2147483647}, true
	default:
		return ScaleRange{}, false
	}
}

// FullWindow returns the window covering the whole dataset.
func (s *RasterSource) FullWindow() SourceWindow {
	return SourceWindow{XSize: s.Width(), YSize: s.Height()}
}

// ClampWindow validates a requested window against the dataset extent. The
// zero window expands to the full extent; zero-area windows are rejected.
func (s *RasterSource) ClampWindow(win SourceWindow) (SourceWindow, error) {
	if win.Empty() {
		return s.FullWindow(), nil
	}
	if win.XSize <= 0 || win.YSize <= 0 {
		return SourceWindow{}, fmt.Errorf("source window %dx%d has no area", win.XSize, win.YSize)
	}
	if win.XOff < 0 || win.YOff < 0 ||
		win.XOff+win.XSize > s.Width() || win.YOff+win.YSize > s.Height() {
		return SourceWindow{}, fmt.Errorf("source window (%d,%d %dx%d) exceeds raster extent %dx%d",
			win.XOff, win.YOff, win.XSize, win.YSize, s.Width(), s.Height())
	}
	return win, nil
}

// ReadBand reads the given 1-based band over win, resampled into an
// outW x outH buffer of float64 samples.
func (s *RasterSource) ReadBand(band int, win SourceWindow, outW, outH int, alg godal.ResamplingAlg) ([]float64, error) {
	if band < 1 || band > s.BandCount() {
		return nil, fmt.Errorf("band %d out of range (raster has %d bands)", band, s.BandCount())
	}
	if outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("display size %dx%d has no area", outW, outH)
	}
	win, err := s.ClampWindow(win)
	if err != nil {
		return nil, err
	}

	buf := make([]float64, outW*outH)
	b := s.ds.Bands()[band-1]
	if err := b.Read(win.XOff, win.YOff, buf, outW, outH,
		godal.Window(win.XSize, win.YSize),
		godal.Resampling(alg),
	); err != nil {
		return nil, fmt.Errorf("failed to read band %d of %s: %w", band, s.name, err)
	}
	return buf, nil
}

// resamplers maps CLI names onto GDAL's read-time resampling algorithms.
var resamplers = map[string]godal.ResamplingAlg{
	"nearest":     godal.Nearest,
	"bilinear":    godal.Bilinear,
	"cubic":       godal.Cubic,
	"cubicspline": godal.Cubic,
	"lanczos":     godal.Lanczos,
	"average":     godal.Average,
	"mode":        godal.Mode,
}

// ParseResampling resolves a resampling algorithm name.
func ParseResampling(name string) (godal.ResamplingAlg, error) {
	alg, ok := resamplers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return godal.Nearest, fmt.Errorf("unknown resampling %q (valid: nearest, bilinear, cubic, cubicspline, lanczos, average, mode)", name)
	}
	return alg, nil
}
