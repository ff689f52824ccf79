package thermal

import (
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/thermal.view/internal/temperature"
)

// HistogramBuckets is the fixed bucket count used for per-frame histograms.
const HistogramBuckets = 100

// Bucket is one histogram bin: the temperature interval it covers and the
// number of pixels that fell into it.
type Bucket struct {
	Range temperature.Range
	Count int
}

// Histogram is a fixed-bucket-count distribution of a frame's temperatures
// over a given range. Buckets are ordered from coldest to hottest.
type Histogram struct {
	Range   temperature.Range
	Buckets []Bucket
}

// BuildHistogram bins every pixel of the frame into buckets evenly spanning
// the given range. Pixels outside the range clamp into the edge buckets, so
// the total count always equals the pixel count; when the range is the union
// of the captured and display ranges nothing can clamp in practice.
//
// Binning is done by direct index computation rather than stat.Histogram,
// which requires a sorted copy of all pixel data per frame.
func BuildHistogram(f *Frame, r temperature.Range, buckets int) *Histogram {
	if buckets < 1 {
		buckets = 1
	}

	// Evenly spaced bucket edges, buckets+1 of them.
	dividers := make([]float64, buckets+1)
	floats.Span(dividers, r.Low.Kelvin(), r.High.Kelvin())

	counts := make([]int, buckets)
	width := r.Width()
	for _, t := range f.Pixels {
		idx := 0
		if width > 0 {
			idx = int(float64(t-r.Low) / width * float64(buckets))
		}
		if idx < 0 {
			idx = 0
		}
		if idx >= buckets {
			idx = buckets - 1
		}
		counts[idx]++
	}

	h := &Histogram{Range: r, Buckets: make([]Bucket, buckets)}
	for i := 0; i < buckets; i++ {
		h.Buckets[i] = Bucket{
			Range: temperature.Range{
				Low:  temperature.FromKelvin(dividers[i]),
				High: temperature.FromKelvin(dividers[i+1]),
			},
			Count: counts[i],
		}
	}
	return h
}

// Total returns the sum of all bucket counts.
func (h *Histogram) Total() int {
	total := 0
	for _, b := range h.Buckets {
		total += b.Count
	}
	return total
}
