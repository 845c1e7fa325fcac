package rastcat

import "math"

// DisplayMax is the full-scale value of a 16-bit display channel.
const DisplayMax = 0xffff

// displayMid is where a degenerate (constant) band lands.
const displayMid = DisplayMax / 2

// ScaleRange is an explicit (min, max) rescale range shared across channels.
type ScaleRange struct {
	Min float64
	Max float64
}

// Span returns Max-Min.
func (r ScaleRange) Span() float64 {
	return r.Max - r.Min
}

// Valid reports whether the range has a positive span with finite bounds.
func (r ScaleRange) Valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) &&
		!math.IsInf(r.Min, 0) && !math.IsInf(r.Max, 0) &&
		r.Max > r.Min
}

// SampleRange returns the actual extrema of samples, skipping NaN values.
// A slice with no finite samples yields a zero-span range.
func SampleRange(samples []float64) ScaleRange {
	r := ScaleRange{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range samples {
		if math.IsNaN(v) {
			continue
		}
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
	}
	if r.Min > r.Max { // nothing finite
		return ScaleRange{}
	}
	return r
}

// Rescale linearly maps samples into [0, DisplayMax] so that min maps to 0
// and max to DisplayMax, clamping and rounding to nearest. When r is nil the
// range is taken from the samples themselves.
//
// A degenerate range (max == min) maps every sample to the midpoint rather
// than dividing by zero. NaN samples map to 0; infinities saturate.
func Rescale(samples []float64, r *ScaleRange) []uint16 {
	var rng ScaleRange
	if r != nil {
		rng = *r
	} else {
		rng = SampleRange(samples)
	}

	out := make([]uint16, len(samples))
	if !rng.Valid() {
		for i := range out {
			out[i] = displayMid
		}
		return out
	}

	scale := DisplayMax / rng.Span()
	for i, v := range samples {
		out[i] = rescaleValue(v, rng.Min, scale)
	}
	return out
}

// RescaleAlpha maps opacity samples into [0, DisplayMax]. It differs from
// Rescale in the degenerate case only: a constant opacity band maps to fully
// opaque, never the midpoint, so an all-255 alpha band does not dim the
// image.
func RescaleAlpha(samples []float64, r *ScaleRange) []uint16 {
	var rng ScaleRange
	if r != nil {
		rng = *r
	} else {
		rng = SampleRange(samples)
	}
	if !rng.Valid() {
		out := make([]uint16, len(samples))
		for i := range out {
			out[i] = DisplayMax
		}
		return out
	}
	return Rescale(samples, &rng)
}

func rescaleValue(v, min, scale float64) uint16 {
	if math.IsNaN(v) {
		return 0
	}
	scaled := (v - min) * scale
	switch {
	case scaled <= 0:
		return 0
	case scaled >= DisplayMax:
		return DisplayMax
	default:
		return uint16(math.Round(scaled))
	}
}
