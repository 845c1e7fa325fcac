package rastcat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultColormap is used for single-band display when none is requested.
const DefaultColormap = "viridis"

// Colormap maps a normalized [0,1] scalar to an RGB triple. Values are
// interpolated in Lab space between fixed keyframe stops.
type Colormap struct {
	name  string
	stops []colorful.Color
}

// Keyframe stops for the named maps. Anchors follow the widely published
// matplotlib tables, evenly spaced.
var colormapStops = map[string][]string{
	"viridis":  {"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"},
	"magma":    {"#000004", "#51127c", "#b73779", "#fc8961", "#fcfdbf"},
	"inferno":  {"#000004", "#57106e", "#bc3754", "#f98e09", "#fcffa4"},
	"plasma":   {"#0d0887", "#7e03a8", "#cc4778", "#f89540", "#f0f921"},
	"cividis":  {"#00224e", "#3b496c", "#666970", "#958f78", "#fdea45"},
	"gray":     {"#000000", "#ffffff"},
	"jet":      {"#00007f", "#0000ff", "#00ffff", "#ffff00", "#ff0000", "#7f0000"},
	"terrain":  {"#333399", "#0099ff", "#00cc66", "#ffff99", "#997f66", "#ffffff"},
	"coolwarm": {"#3b4cc0", "#8caffe", "#dddddd", "#f4997a", "#b40426"},
}

// LookupColormap resolves a colormap by name. Unknown names are rejected at
// configuration time with the list of valid names.
func LookupColormap(name string) (Colormap, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "greys" || key == "grey" || key == "grays" {
		key = "gray"
	}
	hexes, ok := colormapStops[key]
	if !ok {
		return Colormap{}, fmt.Errorf("unknown colormap %q (valid: %s)", name, strings.Join(ColormapNames(), ", "))
	}
	cm := Colormap{name: key, stops: make([]colorful.Color, len(hexes))}
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return Colormap{}, fmt.Errorf("colormap %q stop %d: %w", key, i, err)
		}
		cm.stops[i] = c
	}
	return cm, nil
}

// ColormapNames returns the valid colormap names, sorted.
func ColormapNames() []string {
	names := make([]string, 0, len(colormapStops))
	for name := range colormapStops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name returns the resolved colormap name.
func (cm Colormap) Name() string { return cm.name }

// At returns the 16-bit RGB triple for a normalized scalar t, clamped to
// [0,1]. The zero Colormap falls back to a grayscale ramp so a forgotten
// lookup still produces output.
func (cm Colormap) At(t float64) (r, g, b uint16) {
	switch {
	case t < 0 || t != t: // NaN guards like the rescaler
		t = 0
	case t > 1:
		t = 1
	}
	if len(cm.stops) == 0 {
		v := uint16(t*DisplayMax + 0.5)
		return v, v, v
	}
	if len(cm.stops) == 1 {
		return channel16(cm.stops[0])
	}

	pos := t * float64(len(cm.stops)-1)
	i := int(pos)
	if i >= len(cm.stops)-1 {
		return channel16(cm.stops[len(cm.stops)-1])
	}
	c := cm.stops[i].BlendLab(cm.stops[i+1], pos-float64(i)).Clamped()
	return channel16(c)
}

func channel16(c colorful.Color) (r, g, b uint16) {
	return uint16(c.R*DisplayMax + 0.5),
		uint16(c.G*DisplayMax + 0.5),
		uint16(c.B*DisplayMax + 0.5)
}
