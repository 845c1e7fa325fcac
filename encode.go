package rastcat

import (
	"bytes"
	"fmt"
	"image/png"
)

// DefaultZLevel matches GDAL's PNG driver default.
const DefaultZLevel = 6

// EncodePNG serializes a DisplayBuffer to a lossless, alpha-capable PNG in
// memory. zlevel follows the usual 0-9 deflate scale and is folded onto the
// encoder's level buckets.
func EncodePNG(buf *DisplayBuffer, zlevel int) ([]byte, error) {
	if buf == nil || buf.NRGBA64 == nil {
		return nil, fmt.Errorf("nothing to encode")
	}
	enc := png.Encoder{CompressionLevel: compressionLevel(zlevel)}
	var out bytes.Buffer
	if err := enc.Encode(&out, buf.NRGBA64); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return out.Bytes(), nil
}

func compressionLevel(zlevel int) png.CompressionLevel {
	switch {
	case zlevel == 0:
		return png.NoCompression
	case zlevel >= 1 && zlevel <= 3:
		return png.BestSpeed
	case zlevel >= 8:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}
