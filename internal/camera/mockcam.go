package camera

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/thermal.view/internal/thermal"
)

// EncodeFunc serialises a grid of Kelvin temperatures into the raw payload
// format a particular adapter decodes.
type EncodeFunc func(kelvin []float64) []byte

// EncodeCentiCelsius encodes temperatures as little-endian int16 hundredths
// of a degree Celsius (the mcu90640 wire format).
func EncodeCentiCelsius(kelvin []float64) []byte {
	out := make([]byte, len(kelvin)*2)
	for i, k := range kelvin {
		centi := int16(math.Round((k - 273.15) * 100))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(centi))
	}
	return out
}

// EncodeKelvin64 encodes temperatures as little-endian uint16 1/64ths of a
// Kelvin (the p2pro wire format).
func EncodeKelvin64(kelvin []float64) []byte {
	out := make([]byte, len(kelvin)*2)
	for i, k := range kelvin {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(math.Round(k*64)))
	}
	return out
}

// MockCamera synthesises a scene with a hot spot orbiting over a uniform
// ambient background. It paces ReadFrame at the configured rate, standing in
// for real hardware in dev mode.
type MockCamera struct {
	width     int
	height    int
	encode    EncodeFunc
	frameRate float64

	mu     sync.Mutex
	opened bool
	closed bool
	phase  float64
}

// NewMockCamera builds a mock camera producing frames of the given
// dimensions through the given encoder.
func NewMockCamera(width, height int, encode EncodeFunc, frameRate float64) *MockCamera {
	return &MockCamera{
		width:     width,
		height:    height,
		encode:    encode,
		frameRate: frameRate,
	}
}

// NewMockCameraFor builds a mock camera matched to an adapter's resolution
// and wire format.
func NewMockCameraFor(adapter thermal.Adapter, frameRate float64) (*MockCamera, error) {
	w, h := adapter.Resolution()
	switch adapter.Name() {
	case "mcu90640":
		return NewMockCamera(w, h, EncodeCentiCelsius, frameRate), nil
	case "p2pro":
		return NewMockCamera(w, h, EncodeKelvin64, frameRate), nil
	default:
		return nil, fmt.Errorf("no mock encoder for adapter %q", adapter.Name())
	}
}

func (m *MockCamera) OpenStream() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock camera is closed")
	}
	m.opened = true
	return nil
}

// ReadFrame synthesises the next frame, pacing to the configured rate.
func (m *MockCamera) ReadFrame() ([]byte, error) {
	m.mu.Lock()
	if !m.opened || m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock camera stream is not open")
	}
	m.phase += 0.05
	phase := m.phase
	m.mu.Unlock()

	time.Sleep(time.Duration(float64(time.Second) / m.frameRate))

	const (
		ambientKelvin = 295.15 // ~22°C room
		hotspotDelta  = 42.0   // peak rises ~42K above ambient
	)

	cx := float64(m.width)/2 + float64(m.width)/4*math.Cos(phase)
	cy := float64(m.height)/2 + float64(m.height)/4*math.Sin(phase)
	sigma := float64(m.width) / 8

	kelvin := make([]float64, m.width*m.height)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			spot := hotspotDelta * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
			ripple := 0.25 * math.Sin(phase*3+float64(x)/5)
			kelvin[y*m.width+x] = ambientKelvin + spot + ripple
		}
	}
	return m.encode(kelvin), nil
}

func (m *MockCamera) StopStream() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = false
	return nil
}

func (m *MockCamera) FrameRate() float64 { return m.frameRate }

func (m *MockCamera) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
