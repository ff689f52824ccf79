package thermal

import (
	"testing"

	"github.com/banshee-data/thermal.view/internal/temperature"
)

func makeRampFrame(w, h int, lowK, highK float64) *Frame {
	f := NewFrame(w, h)
	n := len(f.Pixels)
	for i := range f.Pixels {
		k := lowK + (highK-lowK)*float64(i)/float64(n-1)
		f.Pixels[i] = temperature.FromKelvin(k)
	}
	return f
}

func TestHistogramCoverage(t *testing.T) {
	f := makeRampFrame(32, 24, 280, 320)
	h := BuildHistogram(f, f.CapturedRange(), HistogramBuckets)

	if got := len(h.Buckets); got != HistogramBuckets {
		t.Fatalf("bucket count = %d, want %d", got, HistogramBuckets)
	}
	if got, want := h.Total(), 32*24; got != want {
		t.Errorf("Total() = %d, want %d (every pixel binned)", got, want)
	}
}

func TestHistogramBucketEdges(t *testing.T) {
	f := makeRampFrame(10, 10, 280, 320)
	r := temperature.NewRange(temperature.FromKelvin(280), temperature.FromKelvin(320))
	h := BuildHistogram(f, r, 4)

	if h.Buckets[0].Range.Low != temperature.FromKelvin(280) {
		t.Errorf("first bucket low = %v, want 280K", h.Buckets[0].Range.Low)
	}
	if h.Buckets[3].Range.High != temperature.FromKelvin(320) {
		t.Errorf("last bucket high = %v, want 320K", h.Buckets[3].Range.High)
	}
	// Buckets tile the range: each bucket's high is the next bucket's low.
	for i := 1; i < len(h.Buckets); i++ {
		if h.Buckets[i].Range.Low != h.Buckets[i-1].Range.High {
			t.Errorf("bucket %d low %v != bucket %d high %v",
				i, h.Buckets[i].Range.Low, i-1, h.Buckets[i-1].Range.High)
		}
	}
}

func TestHistogramOutOfRangeClampsToEdges(t *testing.T) {
	f := NewFrame(2, 1)
	f.Set(0, 0, temperature.FromKelvin(100)) // far below range
	f.Set(1, 0, temperature.FromKelvin(500)) // far above range

	r := temperature.NewRange(temperature.FromKelvin(280), temperature.FromKelvin(320))
	h := BuildHistogram(f, r, 10)

	if h.Buckets[0].Count != 1 {
		t.Errorf("cold outlier not clamped into first bucket: %d", h.Buckets[0].Count)
	}
	if h.Buckets[9].Count != 1 {
		t.Errorf("hot outlier not clamped into last bucket: %d", h.Buckets[9].Count)
	}
	if h.Total() != 2 {
		t.Errorf("Total() = %d, want 2", h.Total())
	}
}

func TestHistogramDegenerateRange(t *testing.T) {
	f := NewFrame(3, 1)
	for i := range f.Pixels {
		f.Pixels[i] = temperature.FromKelvin(300)
	}
	r := temperature.NewRange(temperature.FromKelvin(300), temperature.FromKelvin(300))

	h := BuildHistogram(f, r, 5)
	if h.Total() != 3 {
		t.Errorf("degenerate range lost pixels: Total() = %d, want 3", h.Total())
	}
	if h.Buckets[0].Count != 3 {
		t.Errorf("degenerate range should bin everything in bucket 0, got %d", h.Buckets[0].Count)
	}
}

func TestHistogramDistribution(t *testing.T) {
	// Half the pixels at 285K, half at 315K, range [280,320] with 4 buckets
	// of width 10: counts should land in buckets 0 and 3.
	f := NewFrame(4, 1)
	f.Pixels[0] = temperature.FromKelvin(285)
	f.Pixels[1] = temperature.FromKelvin(285)
	f.Pixels[2] = temperature.FromKelvin(315)
	f.Pixels[3] = temperature.FromKelvin(315)

	r := temperature.NewRange(temperature.FromKelvin(280), temperature.FromKelvin(320))
	h := BuildHistogram(f, r, 4)

	want := []int{2, 0, 0, 2}
	for i, b := range h.Buckets {
		if b.Count != want[i] {
			t.Errorf("bucket %d count = %d, want %d", i, b.Count, want[i])
		}
	}
}
