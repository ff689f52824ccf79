// Package thermal implements the capture pipeline core: temperature frames,
// false-colour rendering, histogram binning, display-range smoothing and the
// background capture worker.
package thermal

import (
	"image"
	"time"

	"github.com/banshee-data/thermal.view/internal/temperature"
)

// Frame is one decoded grid of per-pixel calibrated temperatures from a
// single capture call.
type Frame struct {
	Width  int
	Height int

	// Pixels holds the calibrated temperatures in row-major order.
	Pixels []temperature.Temp

	// CapturedAt is the wall-clock time the frame was decoded.
	CapturedAt time.Time
}

// NewFrame allocates a zeroed frame of the given dimensions.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pixels: make([]temperature.Temp, width*height),
	}
}

// At returns the temperature at pixel (x, y).
func (f *Frame) At(x, y int) temperature.Temp {
	return f.Pixels[y*f.Width+x]
}

// Set assigns the temperature at pixel (x, y).
func (f *Frame) Set(x, y int, t temperature.Temp) {
	f.Pixels[y*f.Width+x] = t
}

// MinMax returns the pixel positions of the frame's minimum and maximum
// temperature. Ties resolve to the earliest pixel in row-major order.
func (f *Frame) MinMax() (minPos, maxPos image.Point) {
	if len(f.Pixels) == 0 {
		return image.Point{}, image.Point{}
	}
	minIdx, maxIdx := 0, 0
	for i, t := range f.Pixels {
		if t < f.Pixels[minIdx] {
			minIdx = i
		}
		if t > f.Pixels[maxIdx] {
			maxIdx = i
		}
	}
	minPos = image.Point{X: minIdx % f.Width, Y: minIdx / f.Width}
	maxPos = image.Point{X: maxIdx % f.Width, Y: maxIdx / f.Width}
	return minPos, maxPos
}

// CapturedRange returns the [min, max] temperature observed in the frame.
func (f *Frame) CapturedRange() temperature.Range {
	minPos, maxPos := f.MinMax()
	return temperature.NewRange(f.At(minPos.X, minPos.Y), f.At(maxPos.X, maxPos.Y))
}

// Render maps every pixel through the gradient using the given mapping range
// and returns the false-colour image.
func (f *Frame) Render(g *Gradient, mapping temperature.Range) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetRGBA(x, y, g.At(mapping.Factor(f.At(x, y))))
		}
	}
	return img
}
