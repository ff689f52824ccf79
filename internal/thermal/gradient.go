package thermal

import (
	"image/color"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// Stop is one colour stop of a gradient at a normalised position in [0,1].
type Stop struct {
	Pos   float64
	Color color.RGBA
}

// Gradient maps a normalised position in [0,1] to a display colour by linear
// interpolation between ordered colour stops. Positions outside [0,1] clamp
// to the first or last stop.
type Gradient struct {
	Name  string
	stops []Stop
}

// NewGradient builds a gradient from ordered stops. Stops must be sorted by
// position; at least one stop is required.
func NewGradient(name string, stops []Stop) *Gradient {
	return &Gradient{Name: name, stops: stops}
}

// At returns the colour for a normalised position.
func (g *Gradient) At(pos float64) color.RGBA {
	if len(g.stops) == 0 {
		return color.RGBA{A: 0xff}
	}
	if pos <= g.stops[0].Pos {
		return g.stops[0].Color
	}
	last := g.stops[len(g.stops)-1]
	if pos >= last.Pos {
		return last.Color
	}
	for i := 1; i < len(g.stops); i++ {
		if pos > g.stops[i].Pos {
			continue
		}
		a, b := g.stops[i-1], g.stops[i]
		span := b.Pos - a.Pos
		if span <= 0 {
			return b.Color
		}
		t := (pos - a.Pos) / span
		return color.RGBA{
			R: lerp(a.Color.R, b.Color.R, t),
			G: lerp(a.Color.G, b.Color.G, t),
			B: lerp(a.Color.B, b.Color.B, t),
			A: 0xff,
		}
	}
	return last.Color
}

// Stops returns a copy of the gradient's colour stops.
func (g *Gradient) Stops() []Stop {
	out := make([]Stop, len(g.stops))
	copy(out, g.stops)
	return out
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// fromColorMap samples a gonum colour map into n evenly spaced stops.
func fromColorMap(name string, m palette.ColorMap, n int) *Gradient {
	m.SetMin(0)
	m.SetMax(1)
	stops := make([]Stop, 0, n)
	for i := 0; i < n; i++ {
		pos := float64(i) / float64(n-1)
		c, err := m.At(pos)
		if err != nil {
			continue
		}
		r, g, b, _ := c.RGBA()
		stops = append(stops, Stop{
			Pos:   pos,
			Color: color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff},
		})
	}
	return NewGradient(name, stops)
}

// Gradients is the ordered table of built-in gradients. The first entry is
// the default used by new capturers.
var Gradients = []*Gradient{
	NewGradient("iron", []Stop{
		{0.00, color.RGBA{0x00, 0x00, 0x14, 0xff}},
		{0.15, color.RGBA{0x32, 0x00, 0x6e, 0xff}},
		{0.35, color.RGBA{0x8c, 0x19, 0x6e, 0xff}},
		{0.55, color.RGBA{0xd2, 0x50, 0x2d, 0xff}},
		{0.75, color.RGBA{0xf0, 0x9b, 0x0a, 0xff}},
		{0.90, color.RGBA{0xfa, 0xe1, 0x3c, 0xff}},
		{1.00, color.RGBA{0xff, 0xff, 0xff, 0xff}},
	}),
	NewGradient("white-hot", []Stop{
		{0.00, color.RGBA{0x00, 0x00, 0x00, 0xff}},
		{1.00, color.RGBA{0xff, 0xff, 0xff, 0xff}},
	}),
	NewGradient("black-hot", []Stop{
		{0.00, color.RGBA{0xff, 0xff, 0xff, 0xff}},
		{1.00, color.RGBA{0x00, 0x00, 0x00, 0xff}},
	}),
	fromColorMap("black-body", moreland.ExtendedBlackBody(), 32),
	fromColorMap("kindlmann", moreland.ExtendedKindlmann(), 32),
	fromColorMap("cool-warm", moreland.SmoothBlueRed(), 32),
}

// DefaultGradient returns the gradient used when none is configured.
func DefaultGradient() *Gradient { return Gradients[0] }

// GradientByName looks up a built-in gradient.
func GradientByName(name string) (*Gradient, bool) {
	for _, g := range Gradients {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// GradientNames returns the names of all built-in gradients in table order.
func GradientNames() []string {
	names := make([]string, len(Gradients))
	for i, g := range Gradients {
		names[i] = g.Name
	}
	return names
}
