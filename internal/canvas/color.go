package canvas

import (
	"fmt"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// cycle is the default property cycle (tab10) used when no colour is given.
var cycle = []string{"1f77b4", "ff7f0e", "2ca02c", "d62728", "9467bd", "8c564b", "e377c2", "7f7f7f", "bcbd22", "17becf"}

var named = map[string]string{
	"b": "0000ff", "g": "008000", "r": "ff0000", "c": "00bfbf", "m": "bf00bf", "y": "bfbf00", "k": "000000", "w": "ffffff",
	"blue": "0000ff", "green": "008000", "red": "ff0000", "cyan": "00ffff", "magenta": "ff00ff", "yellow": "ffff00",
	"black": "000000", "white": "ffffff", "orange": "ffa500", "purple": "800080", "pink": "ffc0cb", "brown": "a52a2a",
	"gray": "808080", "grey": "808080", "lightgray": "d3d3d3", "lightgrey": "d3d3d3", "darkgray": "a9a9a9", "darkgrey": "a9a9a9",
	"lime": "00ff00", "navy": "000080", "gold": "ffd700", "silver": "c0c0c0", "darkgreen": "006400", "lightgreen": "90ee90",
	"forestgreen": "228b22", "seagreen": "2e8b57", "darkblue": "00008b", "lightblue": "add8e6", "skyblue": "87ceeb",
	"royalblue": "4169e1", "steelblue": "4682b4", "crimson": "dc143c", "darkred": "8b0000", "teal": "008080",
	"maroon": "800000", "olive": "808000", "coral": "ff7f50", "salmon": "fa8072", "tomato": "ff6347", "violet": "ee82ee",
	"indigo": "4b0082", "turquoise": "40e0d0", "orchid": "da70d6", "khaki": "f0e68c", "beige": "f5f5dc", "ivory": "fffff0",
	"whitesmoke": "f5f5f5", "dimgray": "696969", "dimgrey": "696969", "darkorange": "ff8c00", "yellowgreen": "9acd32",
	"grass": "3a8a3a",
	"tab:blue": "1f77b4", "tab:orange": "ff7f0e", "tab:green": "2ca02c", "tab:red": "d62728", "tab:purple": "9467bd",
	"tab:brown": "8c564b", "tab:pink": "e377c2", "tab:gray": "7f7f7f", "tab:grey": "7f7f7f", "tab:olive": "bcbd22", "tab:cyan": "17becf",
}

// ParseColor resolves a matplotlib colour spec: a name, a single-letter
// code, a "C<n>" cycle reference, "#rgb" or "#rrggbb(aa)".
func ParseColor(spec string) (drawing.Color, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if hex, ok := named[s]; ok {
		return drawing.ColorFromHex(hex), nil
	}
	if len(s) == 2 && s[0] == 'c' && s[1] >= '0' && s[1] <= '9' {
		return drawing.ColorFromHex(cycle[s[1]-'0']), nil
	}
	if strings.HasPrefix(s, "#") {
		h := s[1:]
		if !isHex(h) {
			return drawing.Color{}, fmt.Errorf("invalid color %q", spec)
		}
		switch len(h) {
		case 3:
			return drawing.ColorFromHex(string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})), nil
		case 6:
			return drawing.ColorFromHex(h), nil
		case 8:
			c := drawing.ColorFromHex(h[:6])
			c.A = uint8(hexByte(h[6:]))
			return c, nil
		}
	}
	return drawing.Color{}, fmt.Errorf("invalid color %q", spec)
}

// CycleColor returns the n-th default colour.
func CycleColor(n int) drawing.Color {
	return drawing.ColorFromHex(cycle[n%len(cycle)])
}

// WithAlpha scales a colour's opacity by alpha in [0,1].
func WithAlpha(c drawing.Color, alpha float64) drawing.Color {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	c.A = uint8(math.Round(float64(c.A) * alpha))
	return c
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return s != ""
}

func hexByte(s string) int {
	v := 0
	for _, r := range s {
		v *= 16
		v += strings.IndexRune("0123456789abcdef", r)
	}
	return v
}

// Colormap maps a value in [0,1] to a colour.
type Colormap struct {
	Name  string
	stops []drawing.Color
}

var colormaps = map[string][]string{
	"viridis":  {"440154", "414487", "2a788e", "22a884", "7ad151", "fde725"},
	"magma":    {"000004", "3b0f70", "8c2981", "de4968", "fe9f6d", "fcfdbf"},
	"hot":      {"0b0000", "ff0000", "ffff00", "ffffff"},
	"reds":     {"fff5f0", "fcbba1", "fb6a4a", "cb181d", "67000d"},
	"blues":    {"f7fbff", "c6dbef", "6baed6", "2171b5", "08306b"},
	"greens":   {"f7fcf5", "c7e9c0", "74c476", "238b45", "00441b"},
	"ylorrd":   {"ffffcc", "fed976", "fd8d3c", "e31a1c", "800026"},
	"coolwarm": {"3b4cc0", "7396f5", "b0cbfc", "dddddd", "f6b69b", "e26952", "b40426"},
}

// ParseColormap resolves a colormap name. A "_r" suffix reverses it.
func ParseColormap(name string) (*Colormap, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "viridis"
	}
	reverse := strings.HasSuffix(key, "_r")
	key = strings.TrimSuffix(key, "_r")
	hexes, ok := colormaps[key]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q", name)
	}
	stops := make([]drawing.Color, len(hexes))
	for i, h := range hexes {
		stops[i] = drawing.ColorFromHex(h)
	}
	if reverse {
		for i, j := 0, len(stops)-1; i < j; i, j = i+1, j-1 {
			stops[i], stops[j] = stops[j], stops[i]
		}
	}
	return &Colormap{Name: name, stops: stops}, nil
}

// At interpolates the colour at v, clamped to [0,1].
func (m *Colormap) At(v float64) drawing.Color {
	if math.IsNaN(v) || v <= 0 {
		return m.stops[0]
	}
	if v >= 1 {
		return m.stops[len(m.stops)-1]
	}
	pos := v * float64(len(m.stops)-1)
	i := int(pos)
	f := pos - float64(i)
	a, b := m.stops[i], m.stops[i+1]
	lerp := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f)) }
	return drawing.Color{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}
